package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/alloydbpg/engine"
)

// minExtensionVersion is the google_ml_integration version that ships model
// management.
const minExtensionVersion = "1.3"

// Model describes a model registered with the google_ml_integration
// extension, as reported by google_ml.model_info_view.
type Model struct {
	ID            string
	RequestURL    string
	Provider      string
	Type          string
	QualifiedName string
	AuthType      string
	AuthID        string
}

// CreateModelOptions configure ModelManager.CreateModel. Empty fields are
// omitted from the registration call.
type CreateModelOptions struct {
	Provider      string
	Type          string
	QualifiedName string
	RequestURL    string
	AuthType      string
	AuthID        string
}

// ModelManager registers and inspects in-database models.
type ModelManager struct {
	pool engine.DBPool
}

// NewModelManager creates a ModelManager and verifies the
// google_ml_integration extension is installed, recent enough and has model
// support enabled.
func NewModelManager(ctx context.Context, eng *engine.Engine) (*ModelManager, error) {
	m := NewModelManagerWithPool(eng.Pool())

	if _, err := m.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS google_ml_integration"); err != nil {
		return nil, fmt.Errorf("failed to create google_ml_integration extension: %w", err)
	}

	var version string
	err := m.pool.QueryRow(ctx,
		"SELECT extversion FROM pg_extension WHERE extname = 'google_ml_integration'").Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("failed to read google_ml_integration version: %w", err)
	}
	if strings.Compare(version, minExtensionVersion) < 0 {
		return nil, fmt.Errorf("google_ml_integration %s or later is required, found %s", minExtensionVersion, version)
	}

	var enabled string
	err = m.pool.QueryRow(ctx,
		"SELECT setting FROM pg_settings WHERE name = 'google_ml_integration.enable_model_support'").Scan(&enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to read enable_model_support flag: %w", err)
	}
	if enabled != "on" {
		return nil, fmt.Errorf("the database flag google_ml_integration.enable_model_support must be on, found %q", enabled)
	}

	return m, nil
}

// NewModelManagerWithPool creates a ModelManager without verifying the
// extension.
func NewModelManagerWithPool(pool engine.DBPool) *ModelManager {
	return &ModelManager{pool: pool}
}

// GetModel returns the named model, or nil when it is not registered.
func (m *ModelManager) GetModel(ctx context.Context, modelID string) (*Model, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT model_id, model_request_url, model_provider, model_type, model_qualified_name, model_auth_type, model_auth_id
FROM google_ml.model_info_view WHERE model_id = $1`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up model %q: %w", modelID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error looking up model %q: %w", modelID, err)
		}
		return nil, nil
	}
	model, err := scanModel(rows)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// ListModels returns every registered model.
func (m *ModelManager) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT model_id, model_request_url, model_provider, model_type, model_qualified_name, model_auth_type, model_auth_id
FROM google_ml.model_info_view`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model rows: %w", err)
	}
	return models, nil
}

// CreateModel registers a model with google_ml.create_model.
func (m *ModelManager) CreateModel(ctx context.Context, modelID string, opts CreateModelOptions) error {
	if modelID == "" {
		return fmt.Errorf("model manager: model id is required")
	}

	params := []string{"model_id => " + quoteLiteral(modelID)}
	for _, p := range []struct{ name, value string }{
		{"model_provider", opts.Provider},
		{"model_type", opts.Type},
		{"model_qualified_name", opts.QualifiedName},
		{"model_request_url", opts.RequestURL},
		{"model_auth_type", opts.AuthType},
		{"model_auth_id", opts.AuthID},
	} {
		if p.value != "" {
			params = append(params, fmt.Sprintf("%s => %s", p.name, quoteLiteral(p.value)))
		}
	}

	stmt := fmt.Sprintf("CALL google_ml.create_model(%s)", strings.Join(params, ", "))
	if _, err := m.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create model %q: %w", modelID, err)
	}
	return nil
}

// DropModel removes a registered model.
func (m *ModelManager) DropModel(ctx context.Context, modelID string) error {
	if _, err := m.pool.Exec(ctx, "CALL google_ml.drop_model($1)", modelID); err != nil {
		return fmt.Errorf("failed to drop model %q: %w", modelID, err)
	}
	return nil
}

type modelScanner interface {
	Scan(dest ...any) error
}

func scanModel(row modelScanner) (*Model, error) {
	var (
		model                                               Model
		requestURL, provider, typ, qualified, authT, authID *string
	)
	if err := row.Scan(&model.ID, &requestURL, &provider, &typ, &qualified, &authT, &authID); err != nil {
		return nil, fmt.Errorf("failed to scan model row: %w", err)
	}
	for dst, src := range map[*string]*string{
		&model.RequestURL:    requestURL,
		&model.Provider:      provider,
		&model.Type:          typ,
		&model.QualifiedName: qualified,
		&model.AuthType:      authT,
		&model.AuthID:        authID,
	} {
		if src != nil {
			*dst = *src
		}
	}
	return &model, nil
}
