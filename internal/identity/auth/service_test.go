// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medorahealth/medora/internal/identity/auth"
	"github.com/medorahealth/medora/internal/platform/apperr"
	"github.com/medorahealth/medora/internal/platform/constants"
	"github.com/medorahealth/medora/internal/platform/sec"
)

// # In-Memory Fakes
//
// The fakes reproduce the store's concurrency contract: consumption is a
// single guarded state flip, so racing consumers see exactly one winner.

type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*auth.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int64]*auth.Account)}
}

func (repo *fakeAccountRepo) Create(_ context.Context, account *auth.Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return apperr.Conflict("Email is already registered")
		}
	}

	repo.nextID++
	account.ID = repo.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	clone := *account
	repo.accounts[account.ID] = &clone
	return nil
}

func (repo *fakeAccountRepo) FindByID(_ context.Context, id int64) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	account, ok := repo.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *account
	return &clone, nil
}

func (repo *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, account := range repo.accounts {
		if strings.EqualFold(account.Email, email) && !account.IsDeleted {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (repo *fakeAccountRepo) Update(_ context.Context, account *auth.Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, ok := repo.accounts[account.ID]
	if !ok || stored.IsDeleted {
		return apperr.NotFound("Account")
	}
	stored.FirstName = account.FirstName
	stored.LastName = account.LastName
	stored.PhoneNumber = account.PhoneNumber
	stored.DateOfBirth = account.DateOfBirth
	stored.UpdatedAt = time.Now()
	return nil
}

func (repo *fakeAccountRepo) UpdatePassword(_ context.Context, accountID int64, newHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if account, ok := repo.accounts[accountID]; ok {
		account.PasswordHash = newHash
		account.ResetPending = false
		account.UpdatedAt = time.Now()
	}
	return nil
}

func (repo *fakeAccountRepo) MarkResetPending(_ context.Context, accountID int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if account, ok := repo.accounts[accountID]; ok {
		account.ResetPending = true
	}
	return nil
}

func (repo *fakeAccountRepo) SoftDelete(_ context.Context, id int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if account, ok := repo.accounts[id]; ok {
		account.IsDeleted = true
	}
	return nil
}

func (repo *fakeAccountRepo) List(_ context.Context, limit, offset int) ([]*auth.Account, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	live := make([]*auth.Account, 0, len(repo.accounts))
	for _, account := range repo.accounts {
		if !account.IsDeleted {
			clone := *account
			live = append(live, &clone)
		}
	}

	total := len(live)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return live[offset:end], total, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	tokens map[int64]*auth.Token

	// beforeConsume, when set, runs before a consumption attempt takes the
	// lock. Race tests use it as a rendezvous so every contender reaches the
	// decision point before any of them decides.
	beforeConsume func()
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[int64]*auth.Token)}
}

func (repo *fakeTokenRepo) Create(_ context.Context, token *auth.Token) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.nextID++
	token.ID = repo.nextID
	token.CreatedAt = time.Now()
	token.UpdatedAt = token.CreatedAt
	clone := *token
	repo.tokens[token.ID] = &clone
	return nil
}

func (repo *fakeTokenRepo) FindByID(_ context.Context, id int64) (*auth.Token, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	token, ok := repo.tokens[id]
	if !ok {
		return nil, apperr.NotFound("Token")
	}
	clone := *token
	return &clone, nil
}

func (repo *fakeTokenRepo) FindActiveOTP(_ context.Context, accountID int64, code string, now time.Time) (*auth.Token, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var match *auth.Token
	for _, token := range repo.tokens {
		if token.AccountID != accountID || token.TokenType != auth.TypeOTP {
			continue
		}
		if token.IsDeleted || token.TokenData != code || now.After(token.ExpiryDate) {
			continue
		}
		if match == nil || token.CreatedAt.After(match.CreatedAt) {
			match = token
		}
	}
	if match == nil {
		return nil, apperr.NotFound("OTP")
	}
	clone := *match
	return &clone, nil
}

func (repo *fakeTokenRepo) UpdateData(_ context.Context, id int64, data string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if token, ok := repo.tokens[id]; ok {
		token.TokenData = data
		token.UpdatedAt = time.Now()
	}
	return nil
}

func (repo *fakeTokenRepo) Consume(_ context.Context, id int64) (bool, error) {
	if repo.beforeConsume != nil {
		repo.beforeConsume()
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()

	token, ok := repo.tokens[id]
	if !ok || token.IsDeleted {
		return false, nil
	}
	token.IsDeleted = true
	token.UpdatedAt = time.Now()
	return true, nil
}

func (repo *fakeTokenRepo) RevokeFamily(_ context.Context, id int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	named, ok := repo.tokens[id]
	for _, token := range repo.tokens {
		related := token.RelatedTokenID != nil && *token.RelatedTokenID == id
		sibling := ok && named.RelatedTokenID != nil && token.ID == *named.RelatedTokenID
		if token.ID == id || related || sibling {
			token.IsDeleted = true
		}
	}
	return nil
}

func (repo *fakeTokenRepo) RedeemExchange(_ context.Context, id int64) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	token, ok := repo.tokens[id]
	if !ok || token.TokenType != auth.TypeOTP || !token.IsDeleted || token.TokenData == "" {
		return 0, apperr.NotFound("Exchange token")
	}
	token.TokenData = ""
	return token.AccountID, nil
}

func (repo *fakeTokenRepo) InTx(context context.Context, fn func(context.Context, auth.TokenRepository) error) error {
	return fn(context, repo)
}

type fakeCooldownRepo struct {
	mu   sync.Mutex
	busy bool
	err  error
}

func (repo *fakeCooldownRepo) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.err != nil {
		return false, repo.err
	}
	return !repo.busy, nil
}

type fakeMailer struct {
	mu       sync.Mutex
	failSend bool
	codes    []string
	changed  []string
}

func (mail *fakeMailer) SendOTP(_ context.Context, _ string, code string) error {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	if mail.failSend {
		return errors.New("smtp relay down")
	}
	mail.codes = append(mail.codes, code)
	return nil
}

func (mail *fakeMailer) SendPasswordChanged(_ context.Context, recipient string) error {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	mail.changed = append(mail.changed, recipient)
	return nil
}

func (mail *fakeMailer) lastCode() string {
	mail.mu.Lock()
	defer mail.mu.Unlock()
	if len(mail.codes) == 0 {
		return ""
	}
	return mail.codes[len(mail.codes)-1]
}

// # Test Harness

type harness struct {
	service  *auth.Service
	accounts *fakeAccountRepo
	tokens   *fakeTokenRepo
	cooldown *fakeCooldownRepo
	mailer   *fakeMailer
	signer   *sec.TokenSigner
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	signer, err := sec.NewTokenSigner("unit-test-signing-secret", constants.AuthIssuer)
	require.NoError(t, err)

	accounts := newFakeAccountRepo()
	tokens := newFakeTokenRepo()
	cooldown := &fakeCooldownRepo{}
	mail := &fakeMailer{}

	return &harness{
		service:  auth.NewService(accounts, tokens, cooldown, signer, mail),
		accounts: accounts,
		tokens:   tokens,
		cooldown: cooldown,
		mailer:   mail,
		signer:   signer,
	}
}

// seedAccount registers an account with the given plain-text password.
func (h *harness) seedAccount(t *testing.T, email, password string) *auth.Account {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	account := &auth.Account{
		FirstName:    "Mai",
		LastName:     "Tran",
		Email:        email,
		PasswordHash: hash,
		Role:         sec.RolePatient,
	}
	require.NoError(t, h.accounts.Create(context.Background(), account))
	return account
}

// # Login

/*
TestService_Login_Success checks the happy path: a valid credential pair is
issued, the refresh row points at its access sibling, and both signed strings
decode to the right account.
*/
func TestService_Login_Success(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")

	session, err := h.service.Login(context.Background(), auth.LoginInput{
		Email:    "patient@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, account.ID, session.Account.ID)

	// Both signed strings carry the owning account and their own record ID.
	accessClaims, err := h.signer.Verify(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, accessClaims.AccountID)
	require.NotZero(t, accessClaims.TokenID)

	refreshClaims, err := h.signer.Verify(session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, refreshClaims.AccountID)

	// The refresh row is paired with the access row issued alongside it.
	refreshRow, err := h.tokens.FindByID(context.Background(), refreshClaims.TokenID)
	require.NoError(t, err)
	require.NotNil(t, refreshRow.RelatedTokenID)
	assert.Equal(t, accessClaims.TokenID, *refreshRow.RelatedTokenID)

	// The signed strings were written back into their own rows.
	accessRow, err := h.tokens.FindByID(context.Background(), accessClaims.TokenID)
	require.NoError(t, err)
	assert.Equal(t, session.AccessToken, accessRow.TokenData)
	assert.Equal(t, session.RefreshToken, refreshRow.TokenData)
}

/*
TestService_Login_CaseInsensitiveEmail checks that email matching ignores
case while wrong passwords and unknown emails collapse into one generic
failure.
*/
func TestService_Login_CaseInsensitiveEmail(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "user@x.com", "correct-horse")

	_, err := h.service.Login(context.Background(), auth.LoginInput{
		Email:    "USER@X.com",
		Password: "correct-horse",
	})
	assert.NoError(t, err)

	_, err = h.service.Login(context.Background(), auth.LoginInput{
		Email:    "user@x.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = h.service.Login(context.Background(), auth.LoginInput{
		Email:    "nobody@x.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// # Validation

/*
TestService_Validate_Lifecycle walks a bearer string through the states that
must reject it: tampering, revocation, and store-side expiry.
*/
func TestService_Validate_Lifecycle(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	pair, err := h.service.IssuePair(ctx, account.ID, account.Email)
	require.NoError(t, err)

	// Happy path resolves the owning account.
	resolved, record, err := h.service.Validate(ctx, pair.AccessToken, auth.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)
	assert.Equal(t, auth.TypeAccess, record.TokenType)

	// A refresh string never authenticates as an access credential.
	_, _, err = h.service.Validate(ctx, pair.RefreshToken, auth.TypeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Tampering breaks the signature.
	_, _, err = h.service.Validate(ctx, pair.AccessToken+"x", auth.TypeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Revocation is honored on the very next validation.
	claims, err := h.signer.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.tokens.RevokeFamily(ctx, claims.TokenID))

	_, _, err = h.service.Validate(ctx, pair.AccessToken, auth.TypeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_Validate_TwoExpiryLayers checks that the signature-embedded
expiry and the stored record's expiry are enforced independently; whichever
is stricter wins.
*/
func TestService_Validate_TwoExpiryLayers(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	// Record active, signature already expired.
	liveRow := &auth.Token{
		AccountID:  account.ID,
		TokenType:  auth.TypeAccess,
		ExpiryDate: time.Now().Add(time.Hour),
	}
	require.NoError(t, h.tokens.Create(ctx, liveRow))

	expiredString, err := h.signer.Sign(sec.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		TokenID:   liveRow.ID,
	}, -time.Minute)
	require.NoError(t, err)

	_, _, err = h.service.Validate(ctx, expiredString, auth.TypeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Signature valid for a day, record already past its own window.
	staleRow := &auth.Token{
		AccountID:  account.ID,
		TokenType:  auth.TypeAccess,
		ExpiryDate: time.Now().Add(-time.Minute),
	}
	require.NoError(t, h.tokens.Create(ctx, staleRow))

	freshString, err := h.signer.Sign(sec.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		TokenID:   staleRow.ID,
	}, 24*time.Hour)
	require.NoError(t, err)

	_, _, err = h.service.Validate(ctx, freshString, auth.TypeAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_ValidateAccessToken_DeletedAccount checks the request-layer
policy: credentials of a soft-deleted account stop authenticating.
*/
func TestService_ValidateAccessToken_DeletedAccount(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	pair, err := h.service.IssuePair(ctx, account.ID, account.Email)
	require.NoError(t, err)

	principal, err := h.service.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, principal.AccountID)
	assert.Equal(t, sec.RolePatient, principal.Role)

	require.NoError(t, h.accounts.SoftDelete(ctx, account.ID))

	_, err = h.service.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// # One-Time Passcodes

/*
TestService_SendOTP checks code shape, record window, delivery failures, and
the cooldown guard.
*/
func TestService_SendOTP(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	require.NoError(t, h.service.SendOTP(ctx, account.Email))

	code := h.mailer.lastCode()
	require.Len(t, code, sec.OTPDigits)

	// The persisted record matches the delivered code and expires in ~10m.
	record, err := h.tokens.FindActiveOTP(ctx, account.ID, code, time.Now())
	require.NoError(t, err)
	assert.Equal(t, auth.TypeOTP, record.TokenType)
	assert.WithinDuration(t, time.Now().Add(auth.OTPTTL), record.ExpiryDate, 5*time.Second)

	// Unknown recipients are named, not guessed around.
	err = h.service.SendOTP(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	// A definitive delivery failure is a hard failure and leaves no code behind.
	h.mailer.failSend = true
	err = h.service.SendOTP(ctx, account.Email)
	assert.ErrorIs(t, err, auth.ErrNotifyFailed)
	h.mailer.failSend = false

	// Cooldown window still open.
	h.cooldown.busy = true
	err = h.service.SendOTP(ctx, account.Email)
	require.Error(t, err)
	assert.Equal(t, "RATE_LIMITED", apperr.As(err).Code)

	// A broken cooldown store fails open.
	h.cooldown.busy = false
	h.cooldown.err = errors.New("redis down")
	assert.NoError(t, h.service.SendOTP(ctx, account.Email))
}

/*
TestService_VerifyOTP_SingleUse checks the replay property: the same code
redeems at most once, and the exchange id is the consumed record's id.
*/
func TestService_VerifyOTP_SingleUse(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	require.NoError(t, h.service.SendOTP(ctx, account.Email))
	code := h.mailer.lastCode()

	verified, err := h.service.VerifyOTP(ctx, account.Email, code)
	require.NoError(t, err)
	require.NotZero(t, verified.ExchangeTokenID)

	// The consumed record backs the exchange id.
	record, err := h.tokens.FindByID(ctx, verified.ExchangeTokenID)
	require.NoError(t, err)
	assert.Equal(t, auth.TypeOTP, record.TokenType)
	assert.True(t, record.IsDeleted)

	// The issued pair authenticates.
	_, err = h.service.ValidateAccessToken(ctx, verified.AccessToken)
	assert.NoError(t, err)

	// Replay fails.
	_, err = h.service.VerifyOTP(ctx, account.Email, code)
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)
}

/*
TestService_VerifyOTP_WrongCode checks that mismatched and expired codes are
indistinguishable to the caller.
*/
func TestService_VerifyOTP_WrongCode(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	require.NoError(t, h.service.SendOTP(ctx, account.Email))
	code := h.mailer.lastCode()

	wrong := "0000"
	if wrong == code {
		wrong = "0001"
	}
	_, err := h.service.VerifyOTP(ctx, account.Email, wrong)
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)

	// Force the record past its window; the right code now fails too.
	record, err := h.tokens.FindActiveOTP(ctx, account.ID, code, time.Now())
	require.NoError(t, err)
	h.tokens.mu.Lock()
	h.tokens.tokens[record.ID].ExpiryDate = time.Now().Add(-time.Second)
	h.tokens.mu.Unlock()

	_, err = h.service.VerifyOTP(ctx, account.Email, code)
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)
}

/*
TestService_VerifyOTP_ConcurrentRace checks that racing verifications of the
same code produce exactly one winner.
*/
func TestService_VerifyOTP_ConcurrentRace(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	require.NoError(t, h.service.SendOTP(ctx, account.Email))
	code := h.mailer.lastCode()

	const racers = 8
	results := make(chan error, racers)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < racers; i++ {
		go func() {
			start.Wait()
			_, err := h.service.VerifyOTP(ctx, account.Email, code)
			results <- err
		}()
	}
	start.Done()

	wins, losses := 0, 0
	for i := 0; i < racers; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
		losses++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)
}

// # Password Reset

/*
TestService_ResetPassword_RoundTrip checks the full recovery chain: OTP
verification hands out an exchange id, the reset flips the password, the old
password stops working, and the exchange id cannot be replayed.
*/
func TestService_ResetPassword_RoundTrip(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "old-password1")
	ctx := context.Background()

	require.NoError(t, h.service.ForgotPassword(ctx, account.Email))
	code := h.mailer.lastCode()

	verified, err := h.service.VerifyOTP(ctx, account.Email, code)
	require.NoError(t, err)

	require.NoError(t, h.service.ResetPassword(ctx, verified.ExchangeTokenID, "new-password1"))

	// New password logs in, old one does not.
	_, err = h.service.Login(ctx, auth.LoginInput{Email: account.Email, Password: "new-password1"})
	assert.NoError(t, err)

	_, err = h.service.Login(ctx, auth.LoginInput{Email: account.Email, Password: "old-password1"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// Replaying the exchange id fails.
	err = h.service.ResetPassword(ctx, verified.ExchangeTokenID, "another-pass1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

/*
TestService_ResetPassword_Rejects checks identifier and password guards.
*/
func TestService_ResetPassword_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Unknown exchange id.
	err := h.service.ResetPassword(ctx, 99999, "valid-password1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Weak password never reaches the store.
	err = h.service.ResetPassword(ctx, 1, "short")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	// An access record's id is not an exchange key.
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	pair, err := h.service.IssuePair(ctx, account.ID, account.Email)
	require.NoError(t, err)
	claims, err := h.signer.Verify(pair.AccessToken)
	require.NoError(t, err)

	err = h.service.ResetPassword(ctx, claims.TokenID, "valid-password1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// A pending passcode record whose code was never verified is not an
	// exchange key either.
	require.NoError(t, h.service.SendOTP(ctx, account.Email))
	pending, err := h.tokens.FindActiveOTP(ctx, account.ID, h.mailer.lastCode(), time.Now())
	require.NoError(t, err)

	err = h.service.ResetPassword(ctx, pending.ID, "valid-password1")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// # Session Rotation

/*
TestService_Refresh_Rotation checks that refreshing revokes the old pair and
that a captured refresh string replays at most once.
*/
func TestService_Refresh_Rotation(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	session, err := h.service.Login(ctx, auth.LoginInput{
		Email:    account.Email,
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	rotated, err := h.service.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.AccessToken, rotated.AccessToken)

	// The old pair is fully dead.
	_, err = h.service.ValidateAccessToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.service.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// The rotated pair works.
	_, err = h.service.ValidateAccessToken(ctx, rotated.AccessToken)
	assert.NoError(t, err)
}

/*
TestService_Refresh_ConcurrentRace checks that racing rotations of the same
refresh string produce exactly one winner even when every contender validated
the string while it was still live, the interleaving concurrent requests
produce.
*/
func TestService_Refresh_ConcurrentRace(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	session, err := h.service.Login(ctx, auth.LoginInput{
		Email:    account.Email,
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	// Hold every rotation at the consumption step until all of them have
	// passed validation, so none is rejected before the decision point.
	const racers = 2
	var rendezvous sync.WaitGroup
	rendezvous.Add(racers)
	h.tokens.beforeConsume = func() {
		rendezvous.Done()
		rendezvous.Wait()
	}

	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func() {
			_, err := h.service.Refresh(ctx, session.RefreshToken)
			results <- err
		}()
	}

	wins, losses := 0, 0
	for i := 0; i < racers; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		losses++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)
}

/*
TestService_Logout_Idempotent checks that logout kills the pair and that a
second logout of the same credential is still a success.
*/
func TestService_Logout_Idempotent(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "patient@example.com", "s3cret-pass")
	ctx := context.Background()

	session, err := h.service.Login(ctx, auth.LoginInput{
		Email:    account.Email,
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	require.NoError(t, h.service.Logout(ctx, session.RefreshToken))

	_, err = h.service.ValidateAccessToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Second logout and garbage input are both fine.
	assert.NoError(t, h.service.Logout(ctx, session.RefreshToken))
	assert.NoError(t, h.service.Logout(ctx, "not-a-token"))
}

// # Transaction Scope

type txScopeKey struct{}

// scopedTokenRepo hands its closures a marked context, standing in for the
// deadline-bearing context the store's transactional scope provides. The
// view it exposes fails the test when a statement arrives on any other
// context.
type scopedTokenRepo struct {
	*fakeTokenRepo
	t *testing.T
}

func (repo *scopedTokenRepo) InTx(parent context.Context, fn func(context.Context, auth.TokenRepository) error) error {
	scoped := context.WithValue(parent, txScopeKey{}, true)
	return fn(scoped, &scopedTokenView{fakeTokenRepo: repo.fakeTokenRepo, t: repo.t})
}

type scopedTokenView struct {
	*fakeTokenRepo
	t *testing.T
}

func (view *scopedTokenView) check(ctx context.Context, operation string) {
	assert.NotNil(view.t, ctx.Value(txScopeKey{}), "%s ran outside the transaction scope", operation)
}

func (view *scopedTokenView) Create(ctx context.Context, token *auth.Token) error {
	view.check(ctx, "create")
	return view.fakeTokenRepo.Create(ctx, token)
}

func (view *scopedTokenView) UpdateData(ctx context.Context, id int64, data string) error {
	view.check(ctx, "update_data")
	return view.fakeTokenRepo.UpdateData(ctx, id, data)
}

func (view *scopedTokenView) Consume(ctx context.Context, id int64) (bool, error) {
	view.check(ctx, "consume")
	return view.fakeTokenRepo.Consume(ctx, id)
}

func (view *scopedTokenView) RevokeFamily(ctx context.Context, id int64) error {
	view.check(ctx, "revoke_family")
	return view.fakeTokenRepo.RevokeFamily(ctx, id)
}

func (view *scopedTokenView) FindActiveOTP(ctx context.Context, accountID int64, code string, now time.Time) (*auth.Token, error) {
	view.check(ctx, "find_active_otp")
	return view.fakeTokenRepo.FindActiveOTP(ctx, accountID, code, now)
}

/*
TestService_TokenMutations_RunOnTransactionContext checks that issuance,
verification, and rotation run every transactional statement on the context
the scope provides, so the scope's deadline bounds each statement rather
than only the commit.
*/
func TestService_TokenMutations_RunOnTransactionContext(t *testing.T) {
	signer, err := sec.NewTokenSigner("unit-test-signing-secret", constants.AuthIssuer)
	require.NoError(t, err)

	accounts := newFakeAccountRepo()
	tokens := &scopedTokenRepo{fakeTokenRepo: newFakeTokenRepo(), t: t}
	mail := &fakeMailer{}
	service := auth.NewService(accounts, tokens, &fakeCooldownRepo{}, signer, mail)
	ctx := context.Background()

	hash, err := sec.HashPassword("s3cret-pass")
	require.NoError(t, err)
	account := &auth.Account{
		FirstName:    "Mai",
		LastName:     "Tran",
		Email:        "patient@example.com",
		PasswordHash: hash,
		Role:         sec.RolePatient,
	}
	require.NoError(t, accounts.Create(ctx, account))

	pair, err := service.IssuePair(ctx, account.ID, account.Email)
	require.NoError(t, err)

	_, err = service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, service.SendOTP(ctx, account.Email))
	_, err = service.VerifyOTP(ctx, account.Email, mail.lastCode())
	require.NoError(t, err)
}
