package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// TransactionScope runs a unit of work atomically.
// Every repository handed to fn participates in the same transaction;
// the transaction commits only when fn returns nil.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction.
// ItemStock is only reachable from here, so the denormalized item stock can
// only change together with the batch, location and movement writes.
type TransactionalRepositories interface {
	Items() inventory.ItemRepository
	ItemStock() inventory.ItemStockWriter
	Batches() inventory.BatchRepository
	Locations() inventory.LocationInventoryRepository
	Movements() inventory.MovementRepository
}
