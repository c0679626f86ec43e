package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("product not found")
	// ErrNoCatalog means the catalog document has never been created.
	ErrNoCatalog = errors.New("catalog data not found")
)

// Store owns the product collection. Mutations are serialized so that no two
// read-modify-write cycles interleave.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int) (Product, error)
	// Create ignores p.ID and assigns the next identifier.
	Create(ctx context.Context, p Product) (Product, error)
	// Update replaces the product in place; p.ID is ignored.
	Update(ctx context.Context, id int, p Product) (Product, error)
	Delete(ctx context.Context, id int) error
	// Snapshot is List without the create-on-first-access side effect.
	Snapshot(ctx context.Context) ([]Product, error)
	Ping(ctx context.Context) error
}

func createIn(c *Catalog, p Product) Product {
	p = p.clone()
	p.ID = c.NextID
	c.Productos = append(c.Productos, p)
	c.NextID = p.ID + 1
	return p.clone()
}

func updateIn(c *Catalog, id int, p Product) (Product, error) {
	i := c.indexOf(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	p = p.clone()
	p.ID = id
	c.Productos[i] = p
	return p.clone(), nil
}

func deleteIn(c *Catalog, id int) error {
	i := c.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	c.Productos = append(c.Productos[:i], c.Productos[i+1:]...)
	return nil
}

func getIn(c Catalog, id int) (Product, error) {
	i := c.indexOf(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	return c.Productos[i].clone(), nil
}
