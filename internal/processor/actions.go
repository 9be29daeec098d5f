// actions.go defines the actions executed by the worker pool after a
// confirmed attendance event.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/logging"
	"github.com/jsalmela/attendant/internal/mqtt"
	"github.com/jsalmela/attendant/internal/observability"
)

// Action is the base interface for all actions that can be executed.
type Action interface {
	Execute(ctx context.Context) error
	GetDescription() string
}

// WelcomeAction runs the welcome sequence for a confirmed student: display
// message, greeting audio, door actuation. Each step is independent; a
// failing step is logged and counted but does not stop the others, and no
// failure ever reaches the ledger.
type WelcomeAction struct {
	Settings *conf.Settings
	Effects  SideEffects
	Name     string
	Metrics  *observability.Metrics
}

// Execute runs the welcome sequence.
func (a *WelcomeAction) Execute(ctx context.Context) error {
	logger := logging.ForService("welcome")

	if a.Settings.Welcome.Display.Enabled && a.Effects.Display != nil {
		if err := a.Effects.Display.Write("Welcome:", a.Name); err != nil {
			a.Metrics.IncActionFailures()
			logger.Error("display write failed", "student", a.Name, "error", err)
		}
	}

	if a.Settings.Welcome.Audio.Enabled && a.Effects.Player != nil {
		if err := a.Effects.Player.Play(ctx, a.Name); err != nil {
			a.Metrics.IncActionFailures()
			logger.Error("greeting audio failed", "student", a.Name, "error", err)
		}
	}

	if a.Settings.Welcome.Door.Enabled && a.Effects.Door != nil {
		if err := a.Effects.Door.Cycle(ctx); err != nil {
			a.Metrics.IncActionFailures()
			logger.Error("door actuation failed", "student", a.Name, "error", err)
		}
	}

	return nil
}

// GetDescription returns a human-readable description of the action.
func (a *WelcomeAction) GetDescription() string {
	return fmt.Sprintf("welcome sequence for %s", a.Name)
}

// MqttAction publishes a confirmed attendance event as JSON.
type MqttAction struct {
	Client  mqtt.Client
	Topic   string
	Student string
	Event   datastore.AttendanceEvent
}

// attendanceMessage is the published payload shape.
type attendanceMessage struct {
	Student     string `json:"student"`
	StudentID   uint   `json:"student_id"`
	Date        string `json:"date"`
	CheckInTime string `json:"check_in_time"`
	Status      string `json:"status"`
}

// Execute publishes the event, connecting on first use.
func (a *MqttAction) Execute(ctx context.Context) error {
	if !a.Client.IsConnected() {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.Client.Connect(connectCtx); err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
	}

	payload, err := json.Marshal(attendanceMessage{
		Student:     a.Student,
		StudentID:   a.Event.StudentID,
		Date:        a.Event.Date,
		CheckInTime: a.Event.CheckInTime,
		Status:      a.Event.Status,
	})
	if err != nil {
		return fmt.Errorf("marshaling attendance message: %w", err)
	}

	return a.Client.Publish(ctx, a.Topic, string(payload))
}

// GetDescription returns a human-readable description of the action.
func (a *MqttAction) GetDescription() string {
	return fmt.Sprintf("MQTT publish for %s", a.Student)
}
