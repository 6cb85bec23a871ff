package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tapinapp/beacon/internal/auth"
	devicesqlite "github.com/tapinapp/beacon/internal/device/sqlite"
	dirsqlite "github.com/tapinapp/beacon/internal/directory/sqlite"
	"github.com/tapinapp/beacon/internal/notify"
	"github.com/tapinapp/beacon/internal/platform/config"
	"github.com/tapinapp/beacon/internal/push"
	"github.com/tapinapp/beacon/internal/room"
	roomsqlite "github.com/tapinapp/beacon/internal/room/sqlite"
	"github.com/tapinapp/beacon/internal/roster"
	rostersqlite "github.com/tapinapp/beacon/internal/roster/sqlite"
)

type runEnv struct {
	DirectoryDBPath string        `env:"BEACON_DIRECTORY_DB" envDefault:"data/directory.db"`
	RosterDBPath    string        `env:"BEACON_ROSTER_DB" envDefault:"data/roster.db"`
	DeviceDBPath    string        `env:"BEACON_DEVICE_DB" envDefault:"data/devices.db"`
	RoomDBPath      string        `env:"BEACON_ROOM_DB" envDefault:"data/rooms.db"`
	AvatarDir       string        `env:"BEACON_AVATAR_DIR" envDefault:"data/avatars"`
	PublicBaseURL   string        `env:"BEACON_PUBLIC_URL" envDefault:"http://localhost:8080"`
	EventsAPIKey    string        `env:"BEACON_EVENTS_API_KEY"`
	LookupTimeout   time.Duration `env:"BEACON_TOKEN_LOOKUP_TIMEOUT" envDefault:"10s"`
}

// Run opens the service's resources, wires the notification core, and
// serves HTTP until ctx is cancelled. Every store is explicitly constructed
// here and explicitly closed on the way out.
func Run(ctx context.Context, port int) error {
	var envCfg runEnv
	if err := config.ParseEnv(&envCfg); err != nil {
		return err
	}

	directoryStore, err := dirsqlite.Open(envCfg.DirectoryDBPath)
	if err != nil {
		return fmt.Errorf("open directory store: %w", err)
	}
	defer directoryStore.Close()

	rosterStore, err := rostersqlite.Open(envCfg.RosterDBPath)
	if err != nil {
		return fmt.Errorf("open roster store: %w", err)
	}
	defer rosterStore.Close()

	tokenStore, err := devicesqlite.Open(envCfg.DeviceDBPath)
	if err != nil {
		return fmt.Errorf("open device token store: %w", err)
	}
	defer tokenStore.Close()

	memberStore, err := roomsqlite.Open(envCfg.RoomDBPath)
	if err != nil {
		return fmt.Errorf("open room store: %w", err)
	}
	defer memberStore.Close()

	if err := os.MkdirAll(envCfg.AvatarDir, 0o755); err != nil {
		return fmt.Errorf("create avatar dir: %w", err)
	}

	verifierCfg, err := auth.LoadVerifierConfigFromEnv(time.Now)
	if err != nil {
		return err
	}
	issuerCfg, err := auth.LoadIssuerConfigFromEnv(time.Now)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(issuerCfg)
	if err != nil {
		return err
	}

	pushCfg, err := push.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	dispatcher, err := push.NewClient(pushCfg)
	if err != nil {
		return err
	}

	occupancy := room.NewOccupancyRegistry()
	engine := notify.NewEngine(notify.EngineDeps{
		Pipeline:  notify.NewPipeline(tokenStore, dispatcher, envCfg.LookupTimeout),
		Roster:    rosterStore,
		Members:   memberStore,
		Occupancy: occupancy,
		Directory: directoryStore,
		Issuer:    issuer,
	})

	server, err := NewServer(
		Config{
			Port:          port,
			AvatarDir:     envCfg.AvatarDir,
			PublicBaseURL: envCfg.PublicBaseURL,
			EventsAPIKey:  envCfg.EventsAPIKey,
		},
		Deps{
			Directory:  directoryStore,
			Roster:     rosterStore,
			Reconciler: roster.NewReconciler(rosterStore, directoryStore, time.Now),
			Tokens:     tokenStore,
			Members:    memberStore,
			Occupancy:  occupancy,
			Engine:     engine,
			Verifier:   verifierCfg,
		},
	)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
