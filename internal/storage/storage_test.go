package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyGuestCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, KeyGuestCart, []byte(`[{"productId":"P1","quantity":2}]`)))
	got, err := s.Get(ctx, KeyGuestCart)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":"P1","quantity":2}]`, string(got))

	require.NoError(t, s.Put(ctx, KeyGuestCart, []byte(`[]`)))
	got, err = s.Get(ctx, KeyGuestCart)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, s.Delete(ctx, KeyGuestCart))
	_, err = s.Get(ctx, KeyGuestCart)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine
	require.NoError(t, s.Delete(ctx, KeyGuestCart))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	exerciseStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, KeyLocalOrders, []byte(`[{"id":"L1"}]`)))

	second, err := NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)
	got, err := second.Get(ctx, KeyLocalOrders)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"L1"}]`, string(got))
}

func TestFileStore_KeysCannotEscapeDirectory(t *testing.T) {
	s := &fileStore{dir: "/data", logger: zerolog.Nop()}
	assert.Equal(t, "/data/__etc_passwd.json", s.path("../etc/passwd"))
}

func TestGetJSON_PutJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type line struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}

	var out []line
	found, err := GetJSON(ctx, s, KeyGuestCart, &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, PutJSON(ctx, s, KeyGuestCart, []line{{ProductID: "P1", Quantity: 3}}))

	found, err = GetJSON(ctx, s, KeyGuestCart, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []line{{ProductID: "P1", Quantity: 3}}, out)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, KeyGuestCart, []byte("{not json")))

	var out []any
	found, err := GetJSON(ctx, s, KeyGuestCart, &out)
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "failed to decode")
	assert.ErrorIs(t, err, ErrCorrupt)
}

// MockS3 is a mock implementation of S3API.
type MockS3 struct {
	mock.Mock
}

func (m *MockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, *params.Key)
	if out, ok := args.Get(0).(*s3.GetObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	args := m.Called(ctx, *params.Key, string(body))
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *MockS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, *params.Key)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3)
	s := NewS3StoreWithClient(client, "bucket", "freshcart/", zerolog.Nop())

	client.On("PutObject", ctx, "freshcart/freshcart.guest-cart.json", `[]`).Return(nil)
	client.On("GetObject", ctx, "freshcart/freshcart.guest-cart.json").Return(&s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte(`[]`))),
	}, nil)
	client.On("GetObject", ctx, "freshcart/freshcart.local-orders.json").Return(nil, &types.NoSuchKey{})
	client.On("DeleteObject", ctx, "freshcart/freshcart.guest-cart.json").Return(nil)

	require.NoError(t, s.Put(ctx, KeyGuestCart, []byte(`[]`)))

	got, err := s.Get(ctx, KeyGuestCart)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	_, err = s.Get(ctx, KeyLocalOrders)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, KeyGuestCart))
	client.AssertExpectations(t)
}

func TestS3Store_GetError(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3)
	s := NewS3StoreWithClient(client, "bucket", "", zerolog.Nop())

	client.On("GetObject", ctx, "freshcart.guest-cart.json").Return(nil, errors.New("access denied"))

	_, err := s.Get(ctx, KeyGuestCart)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "access denied")
}
