package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured algorithm and
// storage mode.
//
// Storage modes:
//   - "ephemeral": keys are generated on startup and kept in memory only.
//     Every issued token becomes invalid when the service restarts.
//   - "persistent": keys are stored encrypted in the database. Tokens,
//     including long lived refresh tokens, survive restarts until the key
//     that signed them expires.
//
// Audience is left empty: the aud claim carries the client id, which varies
// per token.
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	}

	switch cfg.KeyStorageMode {
	case KeyStoragePersistent:
		enc, err := cryptox.LoadKeyEncryptor(cfg.MasterKeyPath, cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}

		logger.Info("initializing persistent key manager",
			"algorithm", cfg.Algorithm,
			"num_keys", cfg.NumKeys,
			"lifetime", cfg.KeyGracePeriod,
		)

		km, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			KeyManagerOptions: opts,
			Store:             db.SigningKeys(),
			Encryptor:         enc,
			Lifetime:          cfg.KeyGracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}

		logger.Info("persistent signing keys loaded",
			"algorithm", km.Algorithm(),
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		return km, nil

	case KeyStorageEphemeral, "":
		logger.Info("initializing ephemeral key manager",
			"algorithm", cfg.Algorithm,
			"num_keys", cfg.NumKeys,
		)

		km, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Info("generated ephemeral signing keys",
			"algorithm", km.Algorithm(),
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("tokens issued before this start are no longer valid")
		return km, nil

	default:
		return nil, fmt.Errorf("unknown key storage mode %q", cfg.KeyStorageMode)
	}
}
