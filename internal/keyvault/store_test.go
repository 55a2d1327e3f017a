package keyvault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/testutil"
)

func TestMemory(t *testing.T) {
	ctx := testutil.TestContext()
	m := NewMemory()

	_, err := m.GetKey(ctx, constants.KeyMongoGroupID)
	testutil.AssertErrorType(t, err, appErrors.ErrMissingResource)

	require.NoError(t, m.SetKey(ctx, constants.KeyMongoGroupID, "g1"))
	require.NoError(t, m.SetKey(ctx, constants.KeyMongoGroupID, "g2"))

	v, err := m.GetKey(ctx, constants.KeyMongoGroupID)
	require.NoError(t, err)
	assert.Equal(t, "g2", v)
	assert.Equal(t, map[string]string{constants.KeyMongoGroupID: "g2"}, m.Snapshot())
}

func TestGetKeysAndLookup(t *testing.T) {
	ctx := testutil.TestContext()
	m := NewMemory()
	require.NoError(t, m.SetKey(ctx, "a", "1"))
	require.NoError(t, m.SetKey(ctx, "b", "2"))

	keys, err := GetKeys(ctx, m, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, keys)

	_, err = GetKeys(ctx, m, "a", "missing")
	assert.Error(t, err)

	v, ok, err := Lookup(ctx, m, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, err = Lookup(ctx, m, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile(t *testing.T) {
	ctx := testutil.TestContext()
	path := filepath.Join(t.TempDir(), ".ppp", "keys.yaml")

	f := NewFile(path)
	_, err := f.GetKey(ctx, constants.KeyTag)
	testutil.AssertErrorType(t, err, appErrors.ErrMissingResource)

	require.NoError(t, f.SetKey(ctx, constants.KeyTag, constants.Tag))
	require.NoError(t, f.SetKey(ctx, constants.KeyGitHubLogin, "octocat"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(constants.ConfigFilePermissions), info.Mode().Perm())

	reopened := NewFile(path)
	v, err := reopened.GetKey(ctx, constants.KeyGitHubLogin)
	require.NoError(t, err)
	assert.Equal(t, "octocat", v)

	v, err = reopened.GetKey(ctx, constants.KeyTag)
	require.NoError(t, err)
	assert.Equal(t, constants.Tag, v)
}

func TestFile_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	_, err := NewFile(path).GetKey(testutil.TestContext(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode key file")
}

type mockSSMClient struct {
	putParameterFunc func(
		context.Context, *ssm.PutParameterInput, ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
	addTagsToResourceFunc func(
		context.Context, *ssm.AddTagsToResourceInput, ...func(*ssm.Options),
	) (*ssm.AddTagsToResourceOutput, error)
	getParameterFunc func(
		context.Context, *ssm.GetParameterInput, ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

func (m *mockSSMClient) PutParameter(
	ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options),
) (*ssm.PutParameterOutput, error) {
	if m.putParameterFunc != nil {
		return m.putParameterFunc(ctx, params, optFns...)
	}
	return &ssm.PutParameterOutput{}, nil
}

func (m *mockSSMClient) AddTagsToResource(
	ctx context.Context, params *ssm.AddTagsToResourceInput, optFns ...func(*ssm.Options),
) (*ssm.AddTagsToResourceOutput, error) {
	if m.addTagsToResourceFunc != nil {
		return m.addTagsToResourceFunc(ctx, params, optFns...)
	}
	return &ssm.AddTagsToResourceOutput{}, nil
}

func (m *mockSSMClient) GetParameter(
	ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options),
) (*ssm.GetParameterOutput, error) {
	if m.getParameterFunc != nil {
		return m.getParameterFunc(ctx, params, optFns...)
	}
	return &ssm.GetParameterOutput{}, nil
}

func TestParameterStore_SetKey(t *testing.T) {
	var put *ssm.PutParameterInput
	var tagged *ssm.AddTagsToResourceInput
	client := &mockSSMClient{
		putParameterFunc: func(
			_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options),
		) (*ssm.PutParameterOutput, error) {
			put = params
			return &ssm.PutParameterOutput{}, nil
		},
		addTagsToResourceFunc: func(
			_ context.Context, params *ssm.AddTagsToResourceInput, _ ...func(*ssm.Options),
		) (*ssm.AddTagsToResourceOutput, error) {
			tagged = params
			return nil, errors.New("AccessDenied")
		},
	}

	s := NewParameterStore(client, "/ppp/keys/", "alias/ppp", testutil.SilentLogger())
	require.NoError(t, s.SetKey(testutil.TestContext(), constants.KeyMongoAPIKey, "secret"))

	require.NotNil(t, put)
	assert.Equal(t, "/ppp/keys/mongo-api-key", aws.ToString(put.Name))
	assert.Equal(t, "secret", aws.ToString(put.Value))
	assert.Equal(t, types.ParameterTypeSecureString, put.Type)
	assert.Equal(t, "alias/ppp", aws.ToString(put.KeyId))
	assert.True(t, aws.ToBool(put.Overwrite))

	require.NotNil(t, tagged, "tagging failures must not fail the write")
	require.Len(t, tagged.Tags, 2)
	assert.Equal(t, "ppp", aws.ToString(tagged.Tags[0].Value))
	assert.Equal(t, "pppctl", aws.ToString(tagged.Tags[1].Value))
}

func TestParameterStore_SetKeyWithoutKMSKey(t *testing.T) {
	var put *ssm.PutParameterInput
	client := &mockSSMClient{
		putParameterFunc: func(
			_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options),
		) (*ssm.PutParameterOutput, error) {
			put = params
			return &ssm.PutParameterOutput{}, nil
		},
	}

	s := NewParameterStore(client, "/ppp/keys", "", testutil.SilentLogger())
	require.NoError(t, s.SetKey(testutil.TestContext(), "tag", "ppp-2"))
	assert.Nil(t, put.KeyId)
}

func TestParameterStore_GetKey(t *testing.T) {
	tests := []struct {
		name     string
		output   *ssm.GetParameterOutput
		err      error
		want     string
		wantCode string
		wantErr  bool
	}{
		{
			name:   "found",
			output: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("v1")}},
			want:   "v1",
		},
		{
			name:     "not found",
			err:      &types.ParameterNotFound{Message: aws.String("nope")},
			wantErr:  true,
			wantCode: appErrors.ErrCodeNotFound,
		},
		{
			name:    "access denied",
			err:     errors.New("AccessDeniedException"),
			wantErr: true,
		},
		{
			name:    "nil parameter",
			output:  &ssm.GetParameterOutput{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockSSMClient{
				getParameterFunc: func(
					_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options),
				) (*ssm.GetParameterOutput, error) {
					assert.Equal(t, "/ppp/keys/k", aws.ToString(params.Name))
					assert.True(t, aws.ToBool(params.WithDecryption))
					return tt.output, tt.err
				},
			}

			v, err := NewParameterStore(client, "/ppp/keys", "", testutil.SilentLogger()).
				GetKey(testutil.TestContext(), "k")
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantCode != "" {
					testutil.AssertAppErrorCode(t, err, tt.wantCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

type mockRedisClient struct {
	hash   map[string]string
	failOn string
}

func (m *mockRedisClient) HGet(_ context.Context, key, field string) *redis.StringCmd {
	if m.failOn == "hget" {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.hash[key+"/"+field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	if m.failOn == "hset" {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	for i := 0; i+1 < len(values); i += 2 {
		m.hash[key+"/"+values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func TestRedis(t *testing.T) {
	ctx := testutil.TestContext()
	client := &mockRedisClient{hash: map[string]string{}}
	r := NewRedis(client, "/ppp/keys", testutil.SilentLogger())

	_, err := r.GetKey(ctx, "tag")
	testutil.AssertErrorType(t, err, appErrors.ErrMissingResource)

	require.NoError(t, r.SetKey(ctx, "tag", "ppp-2"))
	v, err := r.GetKey(ctx, "tag")
	require.NoError(t, err)
	assert.Equal(t, "ppp-2", v)
	assert.Equal(t, "ppp-2", client.hash["/ppp/keys/tag"])
}

func TestRedis_Errors(t *testing.T) {
	ctx := testutil.TestContext()

	r := NewRedis(&mockRedisClient{hash: map[string]string{}, failOn: "hget"}, "h", testutil.SilentLogger())
	_, err := r.GetKey(ctx, "tag")
	require.Error(t, err)
	assert.NotEqual(t, appErrors.ErrCodeNotFound, appErrors.GetErrorCode(err))

	r = NewRedis(&mockRedisClient{hash: map[string]string{}, failOn: "hset"}, "h", testutil.SilentLogger())
	assert.Error(t, r.SetKey(ctx, "tag", "v"))
}

func TestOpen(t *testing.T) {
	ctx := testutil.TestContext()

	store, closeFn, err := Open(ctx, &config.Config{KeyVaultBackend: constants.KeyVaultMemory}, testutil.SilentLogger())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)
	assert.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "keys.yaml")
	store, _, err = Open(ctx, &config.Config{KeyVaultBackend: constants.KeyVaultFile, KeyVaultFile: path},
		testutil.SilentLogger())
	require.NoError(t, err)
	assert.IsType(t, &File{}, store)

	_, _, err = Open(ctx, &config.Config{KeyVaultBackend: "vault"}, testutil.SilentLogger())
	assert.Error(t, err)
}
