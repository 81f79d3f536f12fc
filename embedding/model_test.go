package embedding

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"

	"github.com/smallnest/alloydbpg/engine"
)

func modelColumns() []string {
	return []string{
		"model_id", "model_request_url", "model_provider", "model_type",
		"model_qualified_name", "model_auth_type", "model_auth_id",
	}
}

func TestNewModelManager_Validation(t *testing.T) {
	mock := newMockPool(t)
	eng := engine.NewWithPool(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS google_ml_integration")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT extversion FROM pg_extension")).
		WillReturnRows(pgxmock.NewRows([]string{"extversion"}).AddRow("1.4"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT setting FROM pg_settings")).
		WillReturnRows(pgxmock.NewRows([]string{"setting"}).AddRow("on"))

	m, err := NewModelManager(ctx, eng)
	assert.NoError(t, err)
	assert.NotNil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewModelManager_OldExtension(t *testing.T) {
	mock := newMockPool(t)
	eng := engine.NewWithPool(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS google_ml_integration")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT extversion FROM pg_extension")).
		WillReturnRows(pgxmock.NewRows([]string{"extversion"}).AddRow("1.2"))

	_, err := NewModelManager(ctx, eng)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "1.3 or later is required")
}

func TestNewModelManager_ModelSupportDisabled(t *testing.T) {
	mock := newMockPool(t)
	eng := engine.NewWithPool(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS google_ml_integration")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT extversion FROM pg_extension")).
		WillReturnRows(pgxmock.NewRows([]string{"extversion"}).AddRow("1.4"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT setting FROM pg_settings")).
		WillReturnRows(pgxmock.NewRows([]string{"setting"}).AddRow("off"))

	_, err := NewModelManager(ctx, eng)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enable_model_support must be on")
}

func TestGetModel(t *testing.T) {
	mock := newMockPool(t)
	m := NewModelManagerWithPool(mock)
	ctx := context.Background()

	url := "https://example.com/v1/embed"
	provider := "custom"
	mock.ExpectQuery(regexp.QuoteMeta("FROM google_ml.model_info_view WHERE model_id = $1")).
		WithArgs("my-model").
		WillReturnRows(pgxmock.NewRows(modelColumns()).
			AddRow("my-model", &url, &provider, nil, nil, nil, nil))

	model, err := m.GetModel(ctx, "my-model")
	assert.NoError(t, err)
	assert.NotNil(t, model)
	assert.Equal(t, "my-model", model.ID)
	assert.Equal(t, url, model.RequestURL)
	assert.Equal(t, "custom", model.Provider)
	assert.Empty(t, model.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModel_NotRegistered(t *testing.T) {
	mock := newMockPool(t)
	m := NewModelManagerWithPool(mock)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM google_ml.model_info_view WHERE model_id = $1")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(modelColumns()))

	model, err := m.GetModel(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, model)
}

func TestListModels(t *testing.T) {
	mock := newMockPool(t)
	m := NewModelManagerWithPool(mock)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM google_ml.model_info_view")).
		WillReturnRows(pgxmock.NewRows(modelColumns()).
			AddRow("model-a", nil, nil, nil, nil, nil, nil).
			AddRow("model-b", nil, nil, nil, nil, nil, nil))

	models, err := m.ListModels(ctx)
	assert.NoError(t, err)
	assert.Len(t, models, 2)
	assert.Equal(t, "model-a", models[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateModel(t *testing.T) {
	mock := newMockPool(t)
	m := NewModelManagerWithPool(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(
		"CALL google_ml.create_model(model_id => 'my-model', model_provider => 'custom', model_request_url => 'https://example.com/embed')")).
		WillReturnResult(pgxmock.NewResult("CALL", 0))

	err := m.CreateModel(ctx, "my-model", CreateModelOptions{
		Provider:   "custom",
		RequestURL: "https://example.com/embed",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropModel(t *testing.T) {
	mock := newMockPool(t)
	m := NewModelManagerWithPool(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CALL google_ml.drop_model($1)")).
		WithArgs("my-model").
		WillReturnResult(pgxmock.NewResult("CALL", 0))

	assert.NoError(t, m.DropModel(ctx, "my-model"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
