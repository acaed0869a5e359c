package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 组装一套完整的引导服务：内存用户仓库 + miniredis 会话 + 真实令牌签发
func setupBootstrap(t *testing.T) (BootstrapService, *mockUserRepo, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newMockUserRepo()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	authService := NewAuthService(repo)
	tokenService := NewTokenService(&TokenServiceConfig{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		KeyID:      "test-key-1",
		Issuer:     "test-issuer",
	})
	sessionService := NewSessionService(client, nil)
	minter := NewCredentialMinter(repo, authService, tokenService, sessionService, nil)
	svc := NewBootstrapService(repo, minter, NewFlightGroup(time.Second), nil)

	return svc, repo, func() {
		client.Close()
		mr.Close()
	}
}

// 创建测试用户并返回对应的握手数据
func seedBootstrapUser(t *testing.T, repo *mockUserRepo, status string) (*model.User, *model.BootstrapSecret) {
	user := &model.User{
		EmployeeNumber: "2021011221",
		Username:       "zhangsan",
		FullName:       "张三",
		Email:          "2021011221@bistu.edu.cn",
		Status:         status,
		AuthSource:     "bistu_sso",
	}
	require.NoError(t, repo.Create(context.Background(), user))

	now := time.Now()
	secret := &model.BootstrapSecret{
		UserID:         user.ID,
		EmployeeNumber: user.EmployeeNumber,
		AuthSource:     user.AuthSource,
		LoginTime:      now.UnixMilli(),
		ExpiresAt:      now.Add(10 * time.Minute).UnixMilli(),
	}
	return user, secret
}

func TestBootstrapService_Success(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	user, secret := seedBootstrapUser(t, repo, model.StatusActive)

	result, err := svc.Bootstrap(context.Background(), secret)
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Greater(t, result.ExpiresIn, 0)
	require.NotNil(t, result.Session)
	assert.Equal(t, user.ID, result.Session.UserID)
	assert.Equal(t, "bistu_sso", result.Session.AuthSource)

	// 临时凭据在引导结束后必须已清除
	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)
}

func TestBootstrapService_ExpiredSecret(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	_, secret := seedBootstrapUser(t, repo, model.StatusActive)
	secret.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()

	_, err := svc.Bootstrap(context.Background(), secret)
	assert.ErrorIs(t, err, ErrBootstrapExpired)

	// 过期检查先于任何凭据操作
	assert.Equal(t, 0, repo.updateCount())
}

func TestBootstrapService_UnknownUser(t *testing.T) {
	svc, _, cleanup := setupBootstrap(t)
	defer cleanup()

	now := time.Now()
	secret := &model.BootstrapSecret{
		UserID:    "no-such-user",
		LoginTime: now.UnixMilli(),
		ExpiresAt: now.Add(time.Minute).UnixMilli(),
	}

	_, err := svc.Bootstrap(context.Background(), secret)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestBootstrapService_SuspendedUser(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	user, secret := seedBootstrapUser(t, repo, model.StatusSuspended)

	_, err := svc.Bootstrap(context.Background(), secret)
	assert.ErrorIs(t, err, ErrAccountSuspended)

	// 登录失败也必须清除临时凭据
	stored, err2 := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err2)
	assert.Empty(t, stored.PasswordHash)
}

func TestBootstrapService_PendingUser(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	_, secret := seedBootstrapUser(t, repo, model.StatusPending)

	_, err := svc.Bootstrap(context.Background(), secret)
	assert.ErrorIs(t, err, ErrAccountPending)
}

func TestBootstrapService_ConcurrentRequestsShareOneMint(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	_, secret := seedBootstrapUser(t, repo, model.StatusActive)

	const callers = 5
	results := make([]*SessionResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Bootstrap(context.Background(), secret)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	// 同一登录事件只产生一次凭据改写（设置 + 清除各一次）和一个会话
	assert.Equal(t, 2, repo.updateCount())
	for _, r := range results {
		assert.Equal(t, results[0].Session.ID, r.Session.ID)
		assert.Equal(t, results[0].AccessToken, r.AccessToken)
	}
}

func TestBootstrapService_DistinctLoginEventsMintSeparately(t *testing.T) {
	svc, repo, cleanup := setupBootstrap(t)
	defer cleanup()

	_, secret := seedBootstrapUser(t, repo, model.StatusActive)

	first, err := svc.Bootstrap(context.Background(), secret)
	require.NoError(t, err)

	// 不同的登录事件不在去重范围内
	second := *secret
	second.LoginTime = secret.LoginTime + 1
	result, err := svc.Bootstrap(context.Background(), &second)
	require.NoError(t, err)

	assert.NotEqual(t, first.Session.ID, result.Session.ID)
}
