//go:build integration
// +build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// openPostgres starts a PostgreSQL container and returns a migrated store on it.
func openPostgres(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := store.Open(&config.DatabaseConfig{
		Driver:       "postgres",
		Host:         host,
		Port:         port.Int(),
		Username:     "storefront",
		Password:     "storefront",
		Database:     "storefront",
		SSLMode:      "disable",
		MaxOpenConns: 20,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(ctx))
	return st
}

func TestPostgresScenario(t *testing.T) {
	st := openPostgres(t)
	ctx := context.Background()

	alice := &models.User{Username: "alice", RawPassword: "pw"}
	require.NoError(t, st.CreateUser(ctx, alice))
	acme := &models.Organization{Name: "Acme", UserID: alice.ID}
	require.NoError(t, st.CreateOrganization(ctx, acme))
	widget := &models.Product{OrganizationID: acme.ID, Name: "Widget", StatusCode: models.StatusAvailable}
	require.NoError(t, st.CreateProduct(ctx, widget))

	_, err := st.RecordSale(ctx, widget.ID, 3)
	require.NoError(t, err)
	_, err = st.RecordSale(ctx, widget.ID, 2)
	require.NoError(t, err)
	total, err := st.SalesTotal(ctx, widget.UUID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	_, err = st.AddToCart(ctx, alice.ID, widget.ID, 1)
	require.NoError(t, err)
	_, err = st.AddToCart(ctx, alice.ID, widget.ID, 1)
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	// constraint violations raised by the database itself
	err = apperr.Classify(st.DB().Create(&models.Cart{UserID: alice.ID, ProductID: 99999, ProductQuantity: 1}).Error, "cart")
	assert.True(t, apperr.IsReferential(err), "got %v", err)
	err = apperr.Classify(st.DB().Create(&models.Organization{Name: "Dup", UserID: alice.ID}).Error, "organization")
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	// a raw product delete cascades to users that browsed it
	gadget := &models.Product{OrganizationID: acme.ID, Name: "Gadget", StatusCode: models.StatusAvailable}
	require.NoError(t, st.CreateProduct(ctx, gadget))
	bob := &models.User{Username: "bob"}
	require.NoError(t, st.CreateUser(ctx, bob))
	require.NoError(t, st.SetBrowsingHistory(ctx, bob.UUID, &gadget.ID))
	require.NoError(t, st.DB().Exec("DELETE FROM products WHERE id = ?", gadget.ID).Error)
	_, err = st.GetUser(ctx, bob.UUID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)

	// migrating twice keeps the added constraints
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.DeleteOrganization(ctx, acme.UUID))
	_, total2, err := st.ListSales(ctx, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total2)
}

func TestPostgresConcurrentMainImage(t *testing.T) {
	st := openPostgres(t)
	ctx := context.Background()

	alice := &models.User{Username: "alice"}
	require.NoError(t, st.CreateUser(ctx, alice))
	acme := &models.Organization{Name: "Acme", UserID: alice.ID}
	require.NoError(t, st.CreateOrganization(ctx, acme))
	widget := &models.Product{OrganizationID: acme.ID, Name: "Widget", StatusCode: models.StatusAvailable}
	require.NoError(t, st.CreateProduct(ctx, widget))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img := &models.ProductImage{Image: fmt.Sprintf("img-%d.png", i), ProductIDs: []uint{widget.ID}}
			errs <- st.CreateProductImage(ctx, img)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	images, err := st.ImagesForProduct(ctx, widget.UUID)
	require.NoError(t, err)
	require.Len(t, images, n)
	mains := 0
	for _, img := range images {
		if img.IsMain {
			mains++
		}
	}
	assert.Equal(t, 1, mains)
}
