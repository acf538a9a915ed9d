package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/cache"
	"filevault/internal/domain"
)

// fakeFiles отдает файлы из памяти
type fakeFiles struct {
	files map[int64]*domain.File
}

func (f *fakeFiles) GetByID(_ context.Context, id int64) (*domain.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return file, nil
}

type fakePerms struct {
	perms map[[2]int64]*domain.FilePermission
}

func (f *fakePerms) Get(_ context.Context, fileID, userID int64) (*domain.FilePermission, error) {
	perm, ok := f.perms[[2]int64{fileID, userID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return perm, nil
}

// fakeRecords — долговременные записи в памяти. collisions задает число
// вставок, завершающихся конфликтом токена.
type fakeRecords struct {
	mu         sync.Mutex
	records    map[string]*domain.ShareLink
	collisions int
	createErr  error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*domain.ShareLink)}
}

func (f *fakeRecords) Create(_ context.Context, link *domain.ShareLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.collisions > 0 {
		f.collisions--
		return domain.ErrAlreadyExists
	}
	link.ID = int64(len(f.records) + 1)
	link.CreatedAt = time.Now()
	f.records[link.Token] = link
	return nil
}

func (f *fakeRecords) GetByToken(_ context.Context, token string) (*domain.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.records[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (f *fakeRecords) IncrementDownloadCount(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.records[token]
	if !ok {
		return domain.ErrNotFound
	}
	link.DownloadCount++
	return nil
}

func (f *fakeRecords) Deactivate(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.records[token]
	if !ok {
		return domain.ErrNotFound
	}
	link.IsActive = false
	return nil
}

func (f *fakeRecords) ListActiveByCreator(_ context.Context, userID int64, _, _ int) ([]domain.LinkSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LinkSummary
	for _, link := range f.records {
		if link.IsActive && link.CreatedByID != nil && *link.CreatedByID == userID {
			out = append(out, domain.LinkSummary{
				ID:            link.ID,
				Token:         link.Token,
				FileID:        link.FileID,
				DownloadCount: link.DownloadCount,
				MaxDownloads:  link.MaxDownloads,
				HasPassword:   link.PasswordHash != nil,
			})
		}
	}
	return out, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (f *fakeAuditStore) Insert(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.AuditFilter) ([]domain.AuditLog, error) {
	return nil, nil
}

func (f *fakeAuditStore) Count(_ context.Context, _ domain.AuditFilter) (int64, error) {
	return 0, nil
}

func (f *fakeAuditStore) ListByUser(_ context.Context, _ int64, _ int) ([]domain.AuditLog, error) {
	return nil, nil
}

func (f *fakeAuditStore) ListByFile(_ context.Context, _ int64, _ int) ([]domain.AuditLog, error) {
	return nil, nil
}

// plainHasher — без bcrypt тесты быстрее и детерминированнее
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }
func (plainHasher) Verify(plaintext, hash string) bool    { return "hashed:"+plaintext == hash }

type shareFixture struct {
	svc     *ShareService
	mr      *miniredis.Miniredis
	records *fakeRecords
	audit   *fakeAuditStore
}

var (
	ownerIdentity = domain.Identity{UserID: 1, Email: "owner@example.com", Role: domain.RoleUser}
	adminIdentity = domain.Identity{UserID: 9, Email: "admin@example.com", Role: domain.RoleAdmin}
	otherIdentity = domain.Identity{UserID: 2, Email: "other@example.com", Role: domain.RoleUser}
)

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	files := &fakeFiles{files: map[int64]*domain.File{
		10: {
			ID:               10,
			OriginalFilename: "report.pdf",
			ContentType:      "application/pdf",
			SizeBytes:        2048,
			S3Key:            "files/1/report.pdf",
			OwnerID:          1,
		},
	}}

	records := newFakeRecords()
	audit := &fakeAuditStore{}

	svc := NewShareService(
		files,
		&fakePerms{perms: map[[2]int64]*domain.FilePermission{}},
		records,
		cache.NewClientFromRedis(rdb),
		NewAuditService(audit),
		plainHasher{},
		"http://localhost:8080",
	)

	return &shareFixture{svc: svc, mr: mr, records: records, audit: audit}
}

func TestCreateShareLink(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{
		FileID:        10,
		ExpiryMinutes: 30,
	})
	require.NoError(t, err)

	assert.Len(t, descriptor.Token, 32)
	assert.Contains(t, descriptor.ShareURL, descriptor.Token)
	assert.Equal(t, "report.pdf", descriptor.Filename)
	assert.False(t, descriptor.HasPassword)

	// Live-состояние в fast store с правильным TTL
	assert.True(t, fx.mr.Exists(shareKeyPrefix+descriptor.Token))
	ttl := fx.mr.TTL(shareKeyPrefix + descriptor.Token)
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 2)

	// Долговременная запись создана
	record, err := fx.records.GetByToken(ctx, descriptor.Token)
	require.NoError(t, err)
	assert.True(t, record.IsActive)
	assert.Equal(t, int64(10), record.FileID)
}

func TestCreateShareLinkValidation(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.CreateShareLink
	}{
		{"lifetime too long", domain.CreateShareLink{FileID: 10, ExpiryMinutes: 43201}},
		{"lifetime negative", domain.CreateShareLink{FileID: 10, ExpiryMinutes: -5}},
		{"zero max downloads", domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10, MaxDownloads: intPtr(0)}},
		{"empty password", domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10, Password: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Create(ctx, ownerIdentity, tt.req)
			assert.True(t, domain.IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateShareLinkAccess(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	// Чужой файл без прав
	_, err := fx.svc.Create(ctx, otherIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// Администратор может делиться любым файлом
	_, err = fx.svc.Create(ctx, adminIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	assert.NoError(t, err)

	// Несуществующий файл
	_, err = fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 404, ExpiryMinutes: 10})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateShareLinkTokenCollision(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	fx.records.collisions = 1

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, descriptor.Token)
}

func TestCreateShareLinkDurableFailureCleansCache(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	fx.records.createErr = assert.AnError

	_, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.Error(t, err)

	// Полураспавшихся ключей не остается
	assert.Empty(t, fx.mr.Keys())
}

func TestValidateShareLink(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 5})
	require.NoError(t, err)

	snapshot, err := fx.svc.Validate(ctx, descriptor.Token)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", snapshot.Filename)
	assert.Equal(t, 0, snapshot.DownloadCount)
	assert.False(t, snapshot.HasPassword())

	// Неизвестный токен неотличим от истекшего
	_, err = fx.svc.Validate(ctx, "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidateExpiredLink(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 1})
	require.NoError(t, err)

	fx.mr.FastForward(2 * time.Minute)

	_, err = fx.svc.Validate(ctx, descriptor.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthorizeAccessDenyOrder(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	email := "invited@example.com"
	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{
		FileID:        10,
		ExpiryMinutes: 10,
		Password:      strPtr("secret"),
		AllowedEmail:  &email,
	})
	require.NoError(t, err)

	invited := &domain.Identity{UserID: 5, Email: email, Role: domain.RoleViewer}

	// Пароль проверяется раньше аутентификации
	_, reason, err := fx.svc.AuthorizeAccess(ctx, descriptor.Token, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyPasswordRequired, reason)

	_, reason, err = fx.svc.AuthorizeAccess(ctx, descriptor.Token, strPtr("wrong"), invited)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyInvalidPassword, reason)

	// Верный пароль, но нет аутентификации
	_, reason, err = fx.svc.AuthorizeAccess(ctx, descriptor.Token, strPtr("secret"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyAuthRequired, reason)

	// Чужой email, сравнение с учетом регистра
	wrongEmail := &domain.Identity{UserID: 6, Email: "Invited@example.com", Role: domain.RoleViewer}
	_, reason, err = fx.svc.AuthorizeAccess(ctx, descriptor.Token, strPtr("secret"), wrongEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyForbidden, reason)

	// Все условия выполнены
	snapshot, reason, err := fx.svc.AuthorizeAccess(ctx, descriptor.Token, strPtr("secret"), invited)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyNone, reason)
	assert.Equal(t, "files/1/report.pdf", snapshot.S3Key)
}

func TestAuthorizeAccessMissingLink(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	_, reason, err := fx.svc.AuthorizeAccess(ctx, "nosuchtoken", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DenyExpiredOrMissing, reason)
}

func TestRecordAccessQuota(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{
		FileID:        10,
		ExpiryMinutes: 10,
		MaxDownloads:  intPtr(2),
	})
	require.NoError(t, err)

	ok, err := fx.svc.RecordAccess(ctx, descriptor.Token, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fx.svc.RecordAccess(ctx, descriptor.Token, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Квота исчерпана
	ok, err = fx.svc.RecordAccess(ctx, descriptor.Token, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Исчерпанная ссылка для Validate неотличима от истекшей
	_, err = fx.svc.Validate(ctx, descriptor.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordAccessConcurrentQuota(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	const quota = 5
	const workers = 20

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{
		FileID:        10,
		ExpiryMinutes: 10,
		MaxDownloads:  intPtr(quota),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := fx.svc.RecordAccess(ctx, descriptor.Token, nil)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}

	// Ровно quota запросов учтены, остальные отклонены
	assert.Equal(t, quota, granted)
}

func TestRecordAccessUnlimited(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ok, err := fx.svc.RecordAccess(ctx, descriptor.Token, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	snapshot, err := fx.svc.Validate(ctx, descriptor.Token)
	require.NoError(t, err)
	assert.Equal(t, 10, snapshot.DownloadCount)
}

func TestRecordAccessDoesNotExtendTTL(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)

	before := fx.mr.TTL(shareKeyPrefix + descriptor.Token)

	fx.mr.FastForward(time.Minute)
	_, err = fx.svc.RecordAccess(ctx, descriptor.Token, nil)
	require.NoError(t, err)

	after := fx.mr.TTL(shareKeyPrefix + descriptor.Token)
	assert.Less(t, after, before)
}

func TestRevokeShareLink(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)

	// Чужую ссылку отозвать нельзя
	err = fx.svc.Revoke(ctx, descriptor.Token, otherIdentity)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	require.NoError(t, fx.svc.Revoke(ctx, descriptor.Token, ownerIdentity))

	// Ссылка мертва сразу
	_, err = fx.svc.Validate(ctx, descriptor.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	record, err := fx.records.GetByToken(ctx, descriptor.Token)
	require.NoError(t, err)
	assert.False(t, record.IsActive)

	// Повторный отзыв — тихий no-op
	assert.NoError(t, fx.svc.Revoke(ctx, descriptor.Token, ownerIdentity))

	// Отзыв несуществующей ссылки
	err = fx.svc.Revoke(ctx, "nosuchtoken", ownerIdentity)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevokeByAdmin(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	descriptor, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)

	assert.NoError(t, fx.svc.Revoke(ctx, descriptor.Token, adminIdentity))
}

func TestListForOwner(t *testing.T) {
	fx := newShareFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 10})
	require.NoError(t, err)

	links, err := fx.svc.ListForOwner(ctx, ownerIdentity, ownerIdentity.UserID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	// Чужой список недоступен обычному пользователю
	_, err = fx.svc.ListForOwner(ctx, otherIdentity, ownerIdentity.UserID, 0, 10)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// Администратору доступен любой
	links, err = fx.svc.ListForOwner(ctx, adminIdentity, ownerIdentity.UserID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

// racingCache продвигает часы miniredis сразу после чтения payload,
// запись истекает между чтением и проверкой TTL
type racingCache struct {
	*cache.Client
	mr      *miniredis.Miniredis
	advance time.Duration
}

func (c *racingCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	found, err := c.Client.Get(ctx, key, dest)
	if found && c.advance > 0 {
		c.mr.FastForward(c.advance)
		c.advance = 0
	}
	return found, err
}

func TestRecordAccessExpiryRace(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	files := &fakeFiles{files: map[int64]*domain.File{
		10: {ID: 10, OriginalFilename: "report.pdf", S3Key: "files/1/report.pdf", OwnerID: 1},
	}}
	raced := &racingCache{Client: cache.NewClientFromRedis(rdb), mr: mr}

	svc := NewShareService(
		files,
		&fakePerms{perms: map[[2]int64]*domain.FilePermission{}},
		newFakeRecords(),
		raced,
		NewAuditService(&fakeAuditStore{}),
		plainHasher{},
		"http://localhost:8080",
	)
	ctx := context.Background()

	descriptor, err := svc.Create(ctx, ownerIdentity, domain.CreateShareLink{FileID: 10, ExpiryMinutes: 1})
	require.NoError(t, err)

	// Ссылка истекает сразу после чтения payload. Доступ должен быть
	// отклонен, а счетчик не должен возродиться ключом без TTL.
	raced.advance = 2 * time.Minute

	granted, err := svc.RecordAccess(ctx, descriptor.Token, nil)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Empty(t, mr.Keys())
}

func intPtr(n int) *int {
	return &n
}
