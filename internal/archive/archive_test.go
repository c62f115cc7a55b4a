package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

type fakeS3 struct {
	puts   []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestHandleEvent_UploadsReconciledReceipts(t *testing.T) {
	fake := &fakeS3{}
	a := New(fake, "pantry", "receipts/")
	r := model.Receipt{
		ID:        "r-1",
		Source:    model.SourceEmail,
		Processed: true,
		CreatedAt: time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC),
		Items:     []model.ReceiptItem{{Name: "Milk", Quantity: 2, MatchedInventoryID: "i-1"}},
	}

	require.NoError(t, a.HandleEvent(context.Background(), pipeline.Event{Kind: pipeline.EventItemChanged}))
	require.NoError(t, a.HandleEvent(context.Background(), pipeline.Event{Kind: pipeline.EventReceiptReconciled, Receipt: &r}))

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "pantry", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "receipts/2025/03/r-1.json", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "application/json", aws.ToString(fake.puts[0].ContentType))

	var got model.Receipt
	require.NoError(t, json.Unmarshal(fake.bodies[0], &got))
	assert.Equal(t, "i-1", got.Items[0].MatchedInventoryID)
}

func TestPut_WrapsErrors(t *testing.T) {
	a := New(&fakeS3{err: errors.New("access denied")}, "b", "")
	err := a.Put(context.Background(), model.Receipt{ID: "r-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r-2")
}

func TestFromConfig_RequiresBucket(t *testing.T) {
	_, err := FromConfig(context.Background(), config.ArchiveConfig{Enabled: true})
	assert.Error(t, err)
}
