package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/host-directory/interfaces"
)

// VaultStore implements an entry store on a HashiCorp Vault KV v2 mount.
// Each key is a secret below dataPath holding the entry in its "content" field.
type VaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultStore creates a Vault entry store. The token is taken from VAULT_TOKEN.
// When clientCert is set it is presented for TLS client certificate authentication.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "host-directory")
//   - clientCert: optional TLS client certificate
//   - log: Structured logger for operational insights
func NewVaultStore(address, mountPath, dataPath string, clientCert *tls.Certificate, log *slog.Logger) (*VaultStore, error) {
	if log == nil {
		log = slog.Default()
	}

	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read Vault configuration: %w", config.Error)
	}
	config.Address = address

	if clientCert != nil {
		config.HttpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{*clientCert}},
			},
			Timeout: 30 * time.Second,
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch reads the secret for key through the KV v2 data endpoint.
func (b *VaultStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	secretPath := b.secretPath("data", key)

	secret, err := b.client.Logical().ReadWithContext(ctx, secretPath)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", secretPath),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Entry not found in Vault", slog.String("path", secretPath))
		return nil, interfaces.ErrContentNotFound
	}

	// A deleted KV v2 version is returned with null data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	content, ok := data["content"].(string)
	if !ok {
		b.log.Error("Invalid content format in Vault data", slog.String("path", secretPath))
		return nil, errors.New("invalid content format in Vault data")
	}

	b.log.Debug("Fetched entry from Vault",
		slog.String("path", secretPath),
		slog.Duration("duration", time.Since(start)))

	return []byte(content), nil
}

// Store writes data as a new version of the secret for key.
func (b *VaultStore) Store(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	secretPath := b.secretPath("data", key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, secretPath, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", secretPath),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored entry in Vault",
		slog.String("path", secretPath),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Delete removes every version of the secret for key.
func (b *VaultStore) Delete(ctx context.Context, key string) error {
	secretPath := b.secretPath("metadata", key)

	if _, err := b.client.Logical().DeleteWithContext(ctx, secretPath); err != nil {
		b.log.Error("Failed to delete from Vault",
			slog.String("path", secretPath),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// List walks the metadata tree below the data path and returns the sorted keys below prefix.
func (b *VaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pending := []string{""}
	for len(pending) > 0 {
		dir := pending[0]
		pending = pending[1:]

		secret, err := b.client.Logical().ListWithContext(ctx, b.secretPath("metadata", dir))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}
		if secret == nil || secret.Data == nil {
			continue
		}

		names, _ := secret.Data["keys"].([]interface{})
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			if strings.HasSuffix(name, "/") {
				pending = append(pending, dir+name)
				continue
			}
			if key := dir + name; strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this store.
func (b *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this store.
func (b *VaultStore) LocationURI() string {
	return b.locationURI
}

// secretPath builds a KV v2 path; kind is "data" or "metadata".
func (b *VaultStore) secretPath(kind, key string) string {
	p := path.Join(b.mountPath, kind, b.dataPath, key)
	if strings.HasSuffix(key, "/") || key == "" {
		p += "/"
	}
	return p
}
