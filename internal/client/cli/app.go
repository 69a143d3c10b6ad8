package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dbelyaev/authflow/internal/client/config"
	"github.com/dbelyaev/authflow/internal/client/credstore"
	"github.com/dbelyaev/authflow/internal/client/flow"
	"github.com/dbelyaev/authflow/internal/client/gateway"
	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/logging"

	_ "modernc.org/sqlite"
)

// authFlow is the slice of *flow.Controller the CLI drives. Commands go
// through this interface so tests can substitute a fake.
type authFlow interface {
	State() flow.State
	Restore(ctx context.Context) error
	Login(ctx context.Context, creds models.LoginCredentials) error
	SubmitMfaCode(ctx context.Context, code string) error
	Signup(ctx context.Context, creds models.SignupCredentials) (*models.SignupResult, error)
	ObserveVerificationToken(ctx context.Context, token string) error
	AbandonEmailVerification() error
	BeginMfaSetup(ctx context.Context) (*models.MfaSetupMaterial, error)
	VerifyMfaSetup(ctx context.Context, code string) ([]string, error)
	CancelMfaSetup() error
	DismissMfaPrompt()
	Logout(ctx context.Context) error
}

type App struct {
	config *config.Config
	flow   authFlow
	db     *sql.DB
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, log logging.Logger) (*App, error) {

	ctx := context.Background()

	session, db, err := credstore.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	gw, err := gateway.NewHTTPGateway(c.ServerBaseURL, c.RequestTimeout, session, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	ctrl := flow.NewController(gw, session, log)

	return &App{
		config: c,
		flow:   ctrl,
		db:     db,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run restores any persisted session and enters the command loop.
// It returns when the user exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	if err := a.flow.Restore(ctx); err != nil {
		fmt.Fprintf(a.out, "Could not restore previous session: %s\n", err.Error())
	}
	a.Root(ctx)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
