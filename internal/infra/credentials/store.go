// Package credentials keeps provider secrets in the integration_tokens table
// so they can be rotated without redeploying the worker.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

const (
	ProviderVolcengine = "volcengine"
)

// VolcCredentials is the access key pair used to sign provider requests.
type VolcCredentials struct {
	AccessKey string
	SecretKey string
	Region    string
}

// Complete reports whether both halves of the key pair are present.
func (c VolcCredentials) Complete() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// VolcCredentials loads the stored key pair. A missing row yields empty
// credentials and no error.
func (s *Store) VolcCredentials(ctx context.Context) (VolcCredentials, error) {
	token, props, err := s.Token(ctx, ProviderVolcengine)
	if err != nil || token == "" {
		return VolcCredentials{}, err
	}
	secret, _ := props["secret_key"].(string)
	region, _ := props["region"].(string)
	return VolcCredentials{
		AccessKey: token,
		SecretKey: strings.TrimSpace(secret),
		Region:    strings.TrimSpace(region),
	}, nil
}

// SetVolcCredentials stores the key pair, replacing any previous one.
func (s *Store) SetVolcCredentials(ctx context.Context, creds VolcCredentials) error {
	creds.AccessKey = strings.TrimSpace(creds.AccessKey)
	creds.SecretKey = strings.TrimSpace(creds.SecretKey)
	if !creds.Complete() {
		return errors.New("volcengine access key and secret key are required")
	}
	props := map[string]any{"secret_key": creds.SecretKey}
	if region := strings.TrimSpace(creds.Region); region != "" {
		props["region"] = region
	}
	return s.upsert(ctx, ProviderVolcengine, creds.AccessKey, props)
}

// Token returns the stored token and its properties for provider.
func (s *Store) Token(ctx context.Context, provider string) (string, map[string]any, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	var raw []byte
	if err := row.Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	props := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return "", nil, err
		}
	}
	return strings.TrimSpace(token), props, nil
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
