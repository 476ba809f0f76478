package main

import (
	"context"
	"fmt"

	"github.com/mnshuhailey/ppa-sap/internal/config"
	"github.com/mnshuhailey/ppa-sap/internal/transfer"
	"github.com/mnshuhailey/ppa-sap/internal/transfer/gcs"
	"github.com/mnshuhailey/ppa-sap/internal/transfer/local"
	"github.com/mnshuhailey/ppa-sap/internal/transfer/sftp"
)

// newDialer picks the transfer channel named by TRANSFER_DRIVER.
func newDialer(cfg *config.Config) (transfer.Dialer, error) {
	switch cfg.Transfer.Driver {
	case config.DriverSFTP:
		sc := sftp.Config{
			Host:       cfg.Transfer.SFTP.Host,
			Port:       cfg.Transfer.SFTP.Port,
			User:       cfg.Transfer.SFTP.User,
			Password:   cfg.Transfer.SFTP.Password,
			KnownHosts: cfg.Transfer.SFTP.KnownHosts,
			Timeout:    cfg.Transfer.SFTP.Timeout,
		}

		return func(ctx context.Context) (transfer.Channel, error) {
			ch, err := sftp.Dial(ctx, sc)
			if err != nil {
				return nil, err
			}

			return ch, nil
		}, nil

	case config.DriverLocal:
		root := cfg.Transfer.Local.Root

		return func(context.Context) (transfer.Channel, error) {
			ch, err := local.New(root)
			if err != nil {
				return nil, err
			}

			return ch, nil
		}, nil

	case config.DriverGCS:
		bucket, prefix := cfg.Transfer.GCS.Bucket, cfg.Transfer.GCS.Prefix

		return func(ctx context.Context) (transfer.Channel, error) {
			ch, err := gcs.New(ctx, bucket, prefix)
			if err != nil {
				return nil, err
			}

			return ch, nil
		}, nil
	}

	return nil, fmt.Errorf("unknown transfer driver %q", cfg.Transfer.Driver)
}
