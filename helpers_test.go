package tenantauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/luminalhq/tenantauth/password"
)

const (
	testPermView    = "invoices.view"
	testPermCreate  = "invoices.create"
	testPermDefault = "profile.view.own"
	testPermMFAGate = "security.mfa.required"

	alicePassword = "correct-horse-battery"
)

var errMockNotFound = errors.New("record not found")

type mockStore struct {
	mu           sync.Mutex
	users        map[string]User
	usersByEmail map[string]string
	orgs         map[string]Organisation
	memberships  map[string]Membership
	byUser       map[string][]string
	groupIDs     map[string][]string
	groupPerms   map[string][]string
	perms        []Permission
	factors      map[string]MFAFactor

	groupReads int
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[string]User),
		usersByEmail: make(map[string]string),
		orgs:         make(map[string]Organisation),
		memberships:  make(map[string]Membership),
		byUser:       make(map[string][]string),
		groupIDs:     make(map[string][]string),
		groupPerms:   make(map[string][]string),
		factors:      make(map[string]MFAFactor),
	}
}

func (s *mockStore) addUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
}

func (s *mockStore) addOrganisation(o Organisation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *mockStore) addMembership(m Membership, groupIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.ID] = m
	s.byUser[m.UserID] = append(s.byUser[m.UserID], m.ID)
	s.groupIDs[m.ID] = groupIDs
}

func (s *mockStore) setGroupPerms(groupID string, permIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupPerms[groupID] = permIDs
}

func (s *mockStore) setMembershipGroups(membershipID string, groupIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupIDs[membershipID] = groupIDs
}

func (s *mockStore) setMembership(m Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.ID] = m
}

func (s *mockStore) setUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
}

func (s *mockStore) GetUserByID(_ context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return User{}, errMockNotFound
	}
	return u, nil
}

func (s *mockStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return User{}, errMockNotFound
	}
	return s.users[id], nil
}

func (s *mockStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errMockNotFound
	}
	u.PasswordHash = hash
	s.users[userID] = u
	return nil
}

func (s *mockStore) MarkEmailVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errMockNotFound
	}
	u.EmailVerified = true
	s.users[userID] = u
	return nil
}

func (s *mockStore) SetDefaultOrganisation(_ context.Context, userID, organisationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errMockNotFound
	}
	u.DefaultOrganisationID = organisationID
	s.users[userID] = u
	return nil
}

func (s *mockStore) GetOrganisation(_ context.Context, organisationID string) (Organisation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[organisationID]
	if !ok {
		return Organisation{}, errMockNotFound
	}
	return o, nil
}

func (s *mockStore) GetMembership(_ context.Context, membershipID string) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return Membership{}, errMockNotFound
	}
	return m, nil
}

func (s *mockStore) GetMembershipsByUser(_ context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Membership, 0, len(s.byUser[userID]))
	for _, id := range s.byUser[userID] {
		out = append(out, s.memberships[id])
	}
	return out, nil
}

func (s *mockStore) UpdateMembership(_ context.Context, membership Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[membership.ID]; !ok {
		return errMockNotFound
	}
	s.memberships[membership.ID] = membership
	return nil
}

func (s *mockStore) GetGroupIDs(_ context.Context, membershipID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupReads++
	return append([]string(nil), s.groupIDs[membershipID]...), nil
}

func (s *mockStore) GetGroupPermissionIDs(_ context.Context, groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.groupPerms[groupID]...), nil
}

func (s *mockStore) ListPermissions(_ context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Permission(nil), s.perms...), nil
}

func (s *mockStore) GetMFAFactor(_ context.Context, userID, organisationID string) (*MFAFactor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.factors[userID+":"+organisationID]
	if !ok {
		return nil, nil
	}
	out := f
	return &out, nil
}

func (s *mockStore) SaveMFAFactor(_ context.Context, factor MFAFactor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factors[factor.UserID+":"+factor.OrganisationID] = factor
	return nil
}

type mockPlans struct {
	mu        sync.Mutex
	items     map[string][]string
	itemPerms map[string][]string
}

func newMockPlans() *mockPlans {
	return &mockPlans{
		items:     make(map[string][]string),
		itemPerms: make(map[string][]string),
	}
}

func (p *mockPlans) setPlan(organisationID, itemID string, permIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[organisationID] = []string{itemID}
	p.itemPerms[itemID] = permIDs
}

func (p *mockPlans) GetActivePlanItems(_ context.Context, organisationID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.items[organisationID]...), nil
}

func (p *mockPlans) GetPlanPermissions(_ context.Context, planItemID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.itemPerms[planItemID]...), nil
}

type mockMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (m *mockMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockMailer) last(t *testing.T) Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected at least one mail")
	}
	return m.sent[len(m.sent)-1]
}

// lastToken pulls the token out of the most recent mail.
func (m *mockMailer) lastToken(t *testing.T) string {
	t.Helper()
	mail := m.last(t)
	tok := mail.Data["token"]
	if tok == "" {
		t.Fatalf("mail %q carries no token", mail.Template)
	}
	return tok
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.MFA.GatePermission = testPermMFAGate
	// Cheap argon2 parameters keep the suite fast.
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

// testFixture seeds the common tenant topology:
//
//	alice (u1): m1 in org1 (created by alice, group g1: view+create)
//	            m2 in org2 (created by bob, group g2: view)
//	bob   (u2): m4 in org1 (group g2: view)
//
// org1's plan grants view+create+default, org2's grants view only.
func testFixture(t *testing.T, store *mockStore, plans *mockPlans) {
	t.Helper()

	store.perms = []Permission{
		{ID: "p1", Name: testPermView},
		{ID: "p2", Name: testPermCreate},
		{ID: "p3", Name: testPermDefault},
		{ID: "p4", Name: testPermMFAGate},
	}

	hasher, err := password.NewHasher(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash(alicePassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	store.addUser(User{ID: "u1", Email: "alice@example.com", PasswordHash: hash, UserType: UserTypeCustomer})
	store.addUser(User{ID: "u2", Email: "bob@example.com", PasswordHash: hash, UserType: UserTypeCustomer})

	store.addOrganisation(Organisation{ID: "org1", Name: "Acme", CreatedByID: "u1"})
	store.addOrganisation(Organisation{ID: "org2", Name: "Globex", CreatedByID: "u2"})

	// m2 listed before m1: created-by selection must beat scan order.
	store.addMembership(Membership{ID: "m2", UserID: "u1", OrganisationID: "org2", InviteStatus: InviteAccepted}, "g2")
	store.addMembership(Membership{ID: "m1", UserID: "u1", OrganisationID: "org1", InviteStatus: InviteAccepted}, "g1")
	store.addMembership(Membership{ID: "m4", UserID: "u2", OrganisationID: "org1", InviteStatus: InviteAccepted}, "g2")

	store.setGroupPerms("g1", "p1", "p2")
	store.setGroupPerms("g2", "p1")

	plans.setPlan("org1", "item1", "p1", "p2", "p3")
	plans.setPlan("org2", "item2", "p1")
}

type testHarness struct {
	engine *Engine
	store  *mockStore
	plans  *mockPlans
	mailer *mockMailer
	redis  *miniredis.Miniredis
}

func withAuditSink(sink AuditSink) func(*Builder) {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *testHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMockStore()
	plans := newMockPlans()
	mailer := &mockMailer{}
	testFixture(t, store, plans)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithSubscriptionService(plans).
		WithMailer(mailer)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testHarness{engine: engine, store: store, plans: plans, mailer: mailer, redis: mr}
}

// requireMFAInOrg2 upgrades the fixture so org2's plan and g2 both carry
// the MFA gate permission.
func (h *testHarness) requireMFAInOrg2() {
	h.store.setGroupPerms("g2", "p1", "p4")
	h.plans.setPlan("org2", "item2", "p1", "p4")
}

func redisClientFor(t *testing.T, addr string) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// codeFor derives the current OTP for a raw secret.
func codeFor(t *testing.T, cfg MFAConfig, secret []byte) string {
	t.Helper()
	counter := time.Now().Unix() / int64(cfg.Period)
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
