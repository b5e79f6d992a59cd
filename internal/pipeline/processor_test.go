package pipeline_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/apflow/invoice-reconciler/internal/entity"
	"github.com/apflow/invoice-reconciler/internal/llm"
	"github.com/apflow/invoice-reconciler/internal/llm/mocks"
	"github.com/apflow/invoice-reconciler/internal/metrics"
	"github.com/apflow/invoice-reconciler/internal/pipeline"
	"github.com/apflow/invoice-reconciler/internal/repository"
	"github.com/apflow/invoice-reconciler/internal/source"
)

func ingestFile(t *testing.T, repos repository.Repositories, role entity.DocumentRole, name, content string) *entity.DocumentFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src := source.NewFSSource(repos.Files, nil)
	res, err := src.IngestPath(context.Background(), role, path)
	require.NoError(t, err)

	hash, err := hex.DecodeString(res.HashHex)
	require.NoError(t, err)
	file, err := repos.Files.GetByHash(context.Background(), hash)
	require.NoError(t, err)
	return file
}

func TestProcessFilePreExtractedJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repos := repository.NewMemoryRepositories()
	extractor := mocks.NewMockFieldExtractor(ctrl)
	// JSON files never reach the extractor

	file := ingestFile(t, repos, entity.RoleInvoice, "inv-etisalat.json", `{
		"po_number": "PO-157",
		"supplier_name": "Etisalat",
		"grand_total": "8450.00",
		"currency": "AED",
		"invoice_date": "2025-06-30"
	}`)

	proc := pipeline.NewProcessor(repos.Files, repos.Records, extractor, nil)
	recID, err := proc.ProcessFile(context.Background(), file.ID)
	require.NoError(t, err)

	rec, err := repos.Records.GetByID(context.Background(), recID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleInvoice, rec.Role)
	assert.Equal(t, "inv-etisalat.json", rec.SourceID)
	require.NotNil(t, rec.Field("po_number"))
	assert.Equal(t, "PO-157", *rec.Field("po_number").Raw)
	require.NotNil(t, rec.Field("vendor_name"))
	assert.Equal(t, "Etisalat", *rec.Field("vendor_name").Raw)
}

func TestProcessFileTextGoesThroughExtractor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repos := repository.NewMemoryRepositories()
	extractor := mocks.NewMockFieldExtractor(ctrl)
	extractor.EXPECT().
		ExtractFields(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.ExtractRequest) (llm.DocumentFields, []byte, error) {
			assert.Contains(t, req.DocumentText, "PO-440")
			assert.Equal(t, "purchase_order", req.RoleHint)
			return llm.DocumentFields{
				Role:        "purchase_order",
				PONumber:    "PO-440",
				VendorName:  "Desert Logistics",
				TotalAmount: "99000.00",
			}, []byte(`{}`), nil
		})

	file := ingestFile(t, repos, entity.RolePurchaseOrder, "po-440.txt", "PURCHASE ORDER PO-440 Desert Logistics 99000.00")

	proc := pipeline.NewProcessor(repos.Files, repos.Records, extractor, nil)
	recID, err := proc.ProcessFile(context.Background(), file.ID)
	require.NoError(t, err)

	rec, err := repos.Records.GetByID(context.Background(), recID)
	require.NoError(t, err)
	assert.Equal(t, entity.RolePurchaseOrder, rec.Role)
	require.NotNil(t, rec.Field("po_number"))
	assert.Equal(t, "PO-440", *rec.Field("po_number").Raw)
}

func TestProcessFileRejectsNonObjectJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name    string
		content string
	}{
		{"null literal", `null`},
		{"array", `[{"po_number": "PO-1"}]`},
		{"bare string", `"PO-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := repository.NewMemoryRepositories()
			file := ingestFile(t, repos, entity.RoleInvoice, "inv-bad.json", tt.content)

			proc := pipeline.NewProcessor(repos.Files, repos.Records, mocks.NewMockFieldExtractor(ctrl), nil)
			_, err := proc.ProcessFile(context.Background(), file.ID)
			require.Error(t, err)

			records, lerr := repos.Records.ListByRole(context.Background(), entity.RoleInvoice)
			require.NoError(t, lerr)
			assert.Empty(t, records)
		})
	}
}

func TestProcessFileObservesExtractPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repos := repository.NewMemoryRepositories()
	file := ingestFile(t, repos, entity.RoleInvoice, "inv.json", `{"po_number": "PO-157"}`)

	m := metrics.NewWith(prometheus.NewRegistry())
	proc := pipeline.NewProcessor(repos.Files, repos.Records, mocks.NewMockFieldExtractor(ctrl), nil).WithMetrics(m)
	_, err := proc.ProcessFile(context.Background(), file.ID)
	require.NoError(t, err)

	// exactly one labeled series exists and it is the pre_extracted path;
	// touching that label must not create a second series
	require.Equal(t, 1, testutil.CollectAndCount(m.ExtractLatency))
	m.ExtractLatency.WithLabelValues(metrics.PathPreExtracted)
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExtractLatency))
}

func TestProcessFileUnknownID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repos := repository.NewMemoryRepositories()
	proc := pipeline.NewProcessor(repos.Files, repos.Records, mocks.NewMockFieldExtractor(ctrl), nil)

	_, err := proc.ProcessFile(context.Background(), uuid.New())
	assert.Error(t, err)
}
