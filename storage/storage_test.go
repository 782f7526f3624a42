package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	s3iface.S3API
	mock.Mock
}

func (m *mockS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	args := m.Called(aws.StringValue(in.Key), string(body), aws.StringValue(in.ContentType))
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestObjectKey(t *testing.T) {
	ts := time.Unix(1718600000, 0)
	assert.Equal(t, "1718600000-TRM_Guidelines.pdf", ObjectKey(ts, "TRM Guidelines.pdf"))
	assert.Equal(t, "1718600000-notice.pdf", ObjectKey(ts, "../../notice.pdf"))
}

func TestURLStore_Put(t *testing.T) {
	s := &URLStore{BaseURL: "https://files.example.com/", Bucket: "docs"}
	u, err := s.Put(context.Background(), "1-a b.pdf", []byte("x"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/docs/1-a%20b.pdf", u)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "k", nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestS3Store_Put(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *mockS3)
		public  string
		wantURL string
		wantErr bool
	}{
		{
			name: "Success with public URL",
			setup: func(m *mockS3) {
				m.On("PutObjectWithContext", "k1", "pdf-bytes", "application/pdf").
					Return(&s3.PutObjectOutput{}, nil)
			},
			public:  "https://cdn.example.com",
			wantURL: "https://cdn.example.com/bucket/k1",
		},
		{
			name: "Success without public URL",
			setup: func(m *mockS3) {
				m.On("PutObjectWithContext", "k1", "pdf-bytes", "application/pdf").
					Return(&s3.PutObjectOutput{}, nil)
			},
			wantURL: "s3://bucket/k1",
		},
		{
			name: "Upload error",
			setup: func(m *mockS3) {
				m.On("PutObjectWithContext", "k1", "pdf-bytes", "application/pdf").
					Return(nil, errors.New("access denied"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockS3)
			tt.setup(m)
			s := NewS3StoreWithClient(m, "bucket", tt.public, nil)

			u, err := s.Put(context.Background(), "k1", []byte("pdf-bytes"), "application/pdf")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, u)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestNewS3Store_MissingConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{Region: "ap-southeast-1"}, nil)
	assert.Error(t, err)
}
