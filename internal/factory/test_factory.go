package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nicpaesk/killer-game/internal/dependencies/mocks"
	"github.com/nicpaesk/killer-game/internal/results"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/storage/memory"
	"github.com/nicpaesk/killer-game/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked clock and
// random source, in-memory storage and cheap PIN hashing
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	cfg := withDefaults(Config{
		IdentityConfig: identity.Config{BcryptCost: bcrypt.MinCost},
	})
	app := newWithDependencies(store, mockClock, mockRandom, results.NewLogPublisher(logger), cfg, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
