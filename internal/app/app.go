// Package app owns every long-lived handle of the server process.
package app

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"olympiad-tracker/internal/attachments"
	"olympiad-tracker/internal/auth"
	"olympiad-tracker/internal/config"
	"olympiad-tracker/internal/db"
	"olympiad-tracker/internal/ledger"
	"olympiad-tracker/internal/security"
)

// App is created once at startup and passed to whatever needs a store.
type App struct {
	Config *config.Config
	Log    *logrus.Logger

	DB          *db.DB
	Ledger      *ledger.Ledger
	Attachments attachments.Store

	Auth     *auth.Authenticator
	Tokens   *security.TokenIssuer
	Sessions *security.SessionStore
}

func New(cfg *config.Config, log *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	database, err := db.Init(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		DB:       database,
		Auth:     auth.NewAuthenticator(database),
		Tokens:   security.NewTokenIssuer(cfg.Secret, cfg.TokenTTL),
		Sessions: security.NewSessionStore(cfg.Secret, cfg.TokenTTL),
	}

	if a.Ledger, err = ledger.Open(cfg.LedgerPath); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to open ledger")
	}
	if a.Attachments, err = newAttachmentStore(cfg); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to initialize attachment storage")
	}

	log.WithFields(logrus.Fields{
		"db_driver": cfg.DBDriver,
		"ledger":    cfg.LedgerPath,
		"storage":   cfg.Storage,
	}).Info("stores ready")
	return a, nil
}

func newAttachmentStore(cfg *config.Config) (attachments.Store, error) {
	if cfg.Storage == config.StorageS3 {
		client, err := attachments.NewS3Client(cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
		if err != nil {
			return nil, err
		}
		return attachments.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	return attachments.NewFileStore(cfg.UploadDir)
}

// Close releases every handle, reporting all failures.
func (a *App) Close() error {
	var result *multierror.Error
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close database"))
		}
		a.DB = nil
	}
	return result.ErrorOrNil()
}
