package dispatch

import (
	"context"
	"net"
	"strconv"

	"github.com/petersohn/home-automation/internal/store"
)

// StoreResolver resolves device addresses from the state store. Resolution
// reads the device's current host and port, so a device that reported in
// from a new address since the action was created is reached there.
type StoreResolver struct {
	store *store.Store
}

// NewStoreResolver creates a StoreResolver.
func NewStoreResolver(st *store.Store) *StoreResolver {
	return &StoreResolver{store: st}
}

// Resolve returns the device's current host:port.
func (r *StoreResolver) Resolve(ctx context.Context, device string) (string, error) {
	var address string
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		d, err := tx.GetDevice(device)
		if err != nil {
			return err
		}
		address = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		return nil
	})
	if err != nil {
		return "", err
	}
	return address, nil
}
