package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps carries what every operation needs. Config, Logger and Clock are
// optional.
type Deps struct {
	Store    docstore.Store
	Identity identity.Provider
	Config   *config.Config
	Logger   logger.Logger
	Clock    clockwork.Clock
}

func (d Deps) log() logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

func (d Deps) config() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

// user resolves the signed-in user and the collection holding their notes.
func (d Deps) user(ctx context.Context) (string, string, error) {
	if d.Store == nil {
		return "", "", errors.NewInternal(fmt.Errorf("no document store configured"))
	}
	if d.Identity == nil {
		return "", "", errors.NewUnauthenticated("")
	}
	uid, err := d.Identity.UserID(ctx)
	if err != nil {
		return "", "", err
	}
	return uid, docstore.UserCollection(uid), nil
}

// requireID trims and checks a note id.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}
