package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/citizen-booking/internal/database"
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/repository"
)

// Fixture is the seed file layout: organisations own services, services
// own providers and events, providers own timeslots.
type Fixture struct {
	Organisations []OrganisationFixture `yaml:"organisations"`
}

type OrganisationFixture struct {
	Name     string           `yaml:"name"`
	Services []ServiceFixture `yaml:"services"`
}

type ServiceFixture struct {
	Name                   string            `yaml:"name"`
	OnHold                 bool              `yaml:"onHold"`
	StandAlone             bool              `yaml:"standAlone"`
	AutoAssign             bool              `yaml:"autoAssign"`
	TwoStepApproval        bool              `yaml:"twoStepApproval"`
	MinDaysInAdvance       *int              `yaml:"minDaysInAdvance"`
	MaxDaysInAdvance       *int              `yaml:"maxDaysInAdvance"`
	RequireSalutation      bool              `yaml:"requireSalutation"`
	AllowAnonymousBookings bool              `yaml:"allowAnonymousBookings"`
	SendCitizenEmail       bool              `yaml:"sendCitizenEmail"`
	SendProviderEmail      bool              `yaml:"sendProviderEmail"`
	SendSMS                bool              `yaml:"sendSms"`
	ExternalAgency         string            `yaml:"externalAgency"`
	Providers              []ProviderFixture `yaml:"providers"`
	Events                 []EventFixture    `yaml:"events"`
}

type ProviderFixture struct {
	Name       string            `yaml:"name"`
	Email      string            `yaml:"email"`
	Phone      string            `yaml:"phone"`
	AutoAccept bool              `yaml:"autoAccept"`
	Timeslots  []TimeslotFixture `yaml:"timeslots"`
}

type TimeslotFixture struct {
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	Capacity int       `yaml:"capacity"`
}

type EventFixture struct {
	Title    string    `yaml:"title"`
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	Capacity int       `yaml:"capacity"`
}

// SeedCounts reports how many rows a seed inserted.
type SeedCounts struct {
	Organisations, Services, Providers, Timeslots, Events int
}

// LoadFixture parses a seed file.  Unknown keys are rejected.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fx, nil
}

// Seed inserts every entity of fx.
func Seed(ctx context.Context, db *sql.DB, fx *Fixture) (SeedCounts, error) {
	var n SeedCounts
	services := repository.NewServiceRepo(db)
	providers := repository.NewProviderRepo(db)

	for _, of := range fx.Organisations {
		org := &model.Organisation{Name: of.Name}
		if err := services.CreateOrganisation(ctx, org); err != nil {
			return n, fmt.Errorf("organisation %q: %w", of.Name, err)
		}
		n.Organisations++

		for _, sf := range of.Services {
			svc := &model.Service{
				OrganisationID:            org.ID,
				Name:                      sf.Name,
				IsOnHold:                  sf.OnHold,
				IsStandAlone:              sf.StandAlone,
				IsSpAutoAssigned:          sf.AutoAssign,
				IsTwoStepApprovalRequired: sf.TwoStepApproval,
				MinDaysInAdvance:          sf.MinDaysInAdvance,
				MaxDaysInAdvance:          sf.MaxDaysInAdvance,
				RequireSalutation:         sf.RequireSalutation,
				AllowAnonymousBookings:    sf.AllowAnonymousBookings,
				SendCitizenEmail:          sf.SendCitizenEmail,
				SendProviderEmail:         sf.SendProviderEmail,
				SendSMS:                   sf.SendSMS,
				ExternalAgency:            sf.ExternalAgency,
			}
			if err := services.Create(ctx, svc); err != nil {
				return n, fmt.Errorf("service %q: %w", sf.Name, err)
			}
			n.Services++

			for _, pf := range sf.Providers {
				p := &model.ServiceProvider{
					ServiceID:          svc.ID,
					Name:               pf.Name,
					Email:              pf.Email,
					Phone:              pf.Phone,
					AutoAcceptBookings: pf.AutoAccept,
				}
				if err := providers.Create(ctx, p); err != nil {
					return n, fmt.Errorf("provider %q: %w", pf.Name, err)
				}
				n.Providers++

				for _, tf := range pf.Timeslots {
					if !tf.End.After(tf.Start) || tf.Capacity < 1 {
						return n, fmt.Errorf("provider %q: invalid timeslot %s-%s", pf.Name, tf.Start, tf.End)
					}
					ts := &model.Timeslot{ServiceProviderID: p.ID, StartDateTime: tf.Start, EndDateTime: tf.End, Capacity: tf.Capacity}
					if err := providers.CreateTimeslot(ctx, ts); err != nil {
						return n, fmt.Errorf("timeslot: %w", err)
					}
					n.Timeslots++
				}
			}

			for _, ef := range sf.Events {
				ev := &model.Event{ServiceID: svc.ID, Title: ef.Title, StartDateTime: ef.Start, EndDateTime: ef.End, Capacity: ef.Capacity}
				if err := providers.CreateEvent(ctx, ev); err != nil {
					return n, fmt.Errorf("event %q: %w", ef.Title, err)
				}
				n.Events++
			}
		}
	}
	return n, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load organisations, services, providers and timeslots from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			fx, err := LoadFixture(args[0])
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			n, err := Seed(cmd.Context(), db, fx)
			if err != nil {
				return err
			}
			log.Info("seeded",
				zap.Int("organisations", n.Organisations),
				zap.Int("services", n.Services),
				zap.Int("providers", n.Providers),
				zap.Int("timeslots", n.Timeslots),
				zap.Int("events", n.Events))
			return nil
		},
	}
}
