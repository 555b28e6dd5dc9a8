package minio

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucket, region string) error {
	return m.Called(ctx, bucket, region).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	return m.Called(ctx, bucket, key, r, size, contentType).Error(0)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucket, key string) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectAPI) ListObjects(ctx context.Context, bucket, prefix string) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucket, prefix)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

type ClientTestSuite struct {
	suite.Suite
	api *MockObjectAPI
	ctx context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.ctx = context.Background()
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)

	s.Equal("us-east-1", cfg.Region)
	s.Equal("nerrecon", cfg.Bucket)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", s.ctx, "sets").Return(false, nil)
	s.api.On("MakeBucket", s.ctx, "sets", "us-east-1").Return(nil)

	c := newClient(s.api, &MinIOConfig{Bucket: "sets"}, logging.NewNopLogger())
	s.NoError(c.EnsureBucket(s.ctx))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", s.ctx, "sets").Return(true, nil)

	c := newClient(s.api, &MinIOConfig{Bucket: "sets"}, nil)
	s.NoError(c.EnsureBucket(s.ctx))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Unreachable() {
	s.api.On("BucketExists", s.ctx, "sets").Return(false, fmt.Errorf("dial tcp: refused"))

	c := newClient(s.api, &MinIOConfig{Bucket: "sets"}, nil)
	err := c.EnsureBucket(s.ctx)
	s.True(errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", s.ctx, "sets").Return(true, nil).Once()
	s.api.On("BucketExists", s.ctx, "sets").Return(false, fmt.Errorf("timeout")).Once()

	c := newClient(s.api, &MinIOConfig{Bucket: "sets"}, nil)
	st, err := c.HealthCheck(s.ctx)
	s.NoError(err)
	s.True(st.Healthy)

	st, err = c.HealthCheck(s.ctx)
	s.Error(err)
	s.False(st.Healthy)
	s.Equal("timeout", st.Error)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

//Personal.AI order the ending
