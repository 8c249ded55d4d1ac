// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package console is the operator console of the elevator device. Single
// key presses change the selected lift and the stack is told about every
// change.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/eiannone/keyboard"

	"github.com/edgeo/drivers/elevator/bacnet"
	"github.com/edgeo/drivers/elevator/internal/database"
)

// faultRange bounds the fault signals the F key toggles.
const faultRange = 16

// Notifier is told about every value the console changes.
type Notifier interface {
	ValueUpdated(device uint32, objectType bacnet.ObjectType, instance uint32, property bacnet.PropertyIdentifier) error
}

// Console handles the key presses of the operator.
type Console struct {
	db       *database.Database
	notifier Notifier
	out      io.Writer
	logger   *slog.Logger
	rnd      *rand.Rand

	device   uint32
	lifts    []uint32
	selected int
}

// Option configures a Console.
type Option func(*Console)

// WithRand sets the source of the fault signals toggled by F.
func WithRand(r *rand.Rand) Option {
	return func(c *Console) {
		c.rnd = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// New returns a console printing to out.
func New(db *database.Database, notifier Notifier, out io.Writer, opts ...Option) *Console {
	c := &Console{
		db:       db,
		notifier: notifier,
		out:      out,
		logger:   slog.Default(),
		device:   db.Device().Instance,
		lifts:    db.LiftInstances(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// Selected returns the instance of the selected lift.
func (c *Console) Selected() uint32 {
	return c.lifts[c.selected]
}

// Run reads keys until ctx is done, Q or Ctrl-C is pressed, or the
// keyboard fails.
func (c *Console) Run(ctx context.Context) error {
	events, err := keyboard.GetKeys(10)
	if err != nil {
		return fmt.Errorf("console: open keyboard: %w", err)
	}
	defer keyboard.Close()

	c.PrintLift()
	c.PrintMenu()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return fmt.Errorf("console: read key: %w", ev.Err)
			}
			if c.HandleKey(ev.Rune, ev.Key) {
				return nil
			}
		}
	}
}

// HandleKey applies one key press and reports whether the operator asked
// to quit.
func (c *Console) HandleKey(ch rune, key keyboard.Key) bool {
	switch key {
	case keyboard.KeyArrowLeft:
		if c.selected > 0 {
			c.selected--
		}
	case keyboard.KeyArrowRight:
		if c.selected < len(c.lifts)-1 {
			c.selected++
		}
	case keyboard.KeyCtrlC, keyboard.KeyEsc:
		return true
	default:
		switch unicode.ToLower(ch) {
		case 'f':
			c.toggleFault()
		case 'm':
			c.toggleGroupMode()
		case 'p':
			c.togglePassengerAlarm()
		case 'd':
			c.nextDirection()
		case 'c':
			c.nextPosition()
		case 's':
			c.nextDoorStatus()
		case 'g':
			c.PrintGlobalStatus()
		case 'q':
			return true
		}
	}

	c.PrintLift()
	c.PrintMenu()
	return false
}

func (c *Console) notify(objectType bacnet.ObjectType, instance uint32, prop bacnet.PropertyIdentifier) {
	if err := c.notifier.ValueUpdated(c.device, objectType, instance, prop); err != nil {
		c.logger.Warn("value update failed",
			slog.Uint64("instance", uint64(instance)),
			slog.String("property", prop.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Console) failed(action string, err error) {
	fmt.Fprintf(c.out, "%s failed: %v\n", action, err)
}

func (c *Console) toggleFault() {
	lift := c.Selected()
	fault := bacnet.LiftFault(c.rnd.Intn(faultRange))

	active, err := c.db.ToggleFaultSignal(lift, fault)
	if err != nil {
		c.failed("Fault signals", err)
		return
	}
	if active {
		fmt.Fprintf(c.out, "Adding %d (%s) to Fault Signals\n", fault, fault)
	} else {
		fmt.Fprintf(c.out, "Removing %d (%s) from Fault Signals\n", fault, fault)
	}
	c.notify(bacnet.ObjectTypeLift, lift, bacnet.PropertyFaultSignals)
}

func (c *Console) toggleGroupMode() {
	mode, err := c.db.ToggleGroupMode(database.LiftGroupInstance)
	if err != nil {
		c.failed("Group mode", err)
		return
	}
	fmt.Fprintf(c.out, "Updating elevator group (%d), group mode property to %d (%s)\n",
		database.LiftGroupInstance, mode, mode)
	c.notify(bacnet.ObjectTypeElevatorGroup, database.LiftGroupInstance, bacnet.PropertyGroupMode)
}

func (c *Console) togglePassengerAlarm() {
	lift := c.Selected()
	alarm, err := c.db.TogglePassengerAlarm(lift)
	if err != nil {
		c.failed("Passenger alarm", err)
		return
	}
	fmt.Fprintf(c.out, "Toggled passenger alarm for lift (%d), to %t\n", lift, alarm)
	c.notify(bacnet.ObjectTypeLift, lift, bacnet.PropertyPassengerAlarm)
}

func (c *Console) nextDirection() {
	lift := c.Selected()
	dir, err := c.db.NextCarMovingDirection(lift)
	if err != nil {
		c.failed("Car moving direction", err)
		return
	}
	fmt.Fprintf(c.out, "Toggled car moving direction for lift (%d), to %d (%s)\n", lift, dir, dir)
	c.notify(bacnet.ObjectTypeLift, lift, bacnet.PropertyCarMovingDirection)
}

func (c *Console) nextPosition() {
	lift := c.Selected()
	pos, err := c.db.NextCarPosition(lift)
	if err != nil {
		c.failed("Car position", err)
		return
	}
	fmt.Fprintf(c.out, "Changed car position for lift (%d), to %d (%s)\n", lift, pos, floorName(pos))
	c.notify(bacnet.ObjectTypeLift, lift, bacnet.PropertyCarPosition)
}

func (c *Console) nextDoorStatus() {
	lift := c.Selected()
	status, err := c.db.NextCarDoorStatus(lift)
	if err != nil {
		c.failed("Car door status", err)
		return
	}
	fmt.Fprintf(c.out, "Changed car door status for lift (%d), to %d (%s)\n", lift, status, status)
	c.notify(bacnet.ObjectTypeLift, lift, bacnet.PropertyCarDoorStatus)
}

func floorName(floor uint8) string {
	if int(floor) < len(database.FloorText) {
		return database.FloorText[floor]
	}
	return fmt.Sprintf("floor %d", floor)
}

func joinEach[T any](values []T, format func(T) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = format(v)
	}
	return strings.Join(parts, ", ")
}

// PrintLift prints the status of the selected lift.
func (c *Console) PrintLift() {
	l, err := c.db.Lift(c.Selected())
	if err != nil {
		c.failed("Lift status", err)
		return
	}
	w := c.out

	fmt.Fprintln(w, strings.Repeat("=", 79))
	fmt.Fprintf(w, "Selected lift (%d/%d):\n", c.selected+1, len(c.lifts))
	fmt.Fprintf(w, "  Instance:               %d\n", l.Instance)
	fmt.Fprintf(w, "  Object Name:            %s\n", l.Name)
	fmt.Fprintf(w, "  Car Door Text (%d):      %s\n", l.Doors(), strings.Join(l.CarDoorText, ", "))

	calls := make([]string, len(l.MakingCarCall))
	for i, floor := range l.MakingCarCall {
		calls[i] = fmt.Sprintf("%s: %d", l.CarDoorText[i], floor)
	}
	fmt.Fprintf(w, "  Making Car Call:        %s\n", strings.Join(calls, ", "))

	fmt.Fprintln(w, "  Registered Car Calls:")
	for i, floors := range l.RegisteredCarCalls {
		fmt.Fprintf(w, "    %s: %s\n", l.CarDoorText[i], joinEach(floors, floorName))
	}
	fmt.Fprintln(w, "  Assigned Landing Calls:")
	for i, assigned := range l.AssignedLandingCalls {
		fmt.Fprintf(w, "    %s: %s\n", l.CarDoorText[i], joinEach(assigned, func(a bacnet.AssignedLandingCall) string {
			return floorName(a.FloorNumber) + "=" + a.Direction.String()
		}))
	}
	fmt.Fprintln(w, "  Landing Door Status:")
	for i, doors := range l.LandingDoorStatus {
		fmt.Fprintf(w, "    %s: %s\n", l.CarDoorText[i], joinEach(doors, func(d bacnet.LandingDoor) string {
			return floorName(d.FloorNumber) + "=" + d.Status.String()
		}))
	}

	fmt.Fprintf(w, "  Fault Signals:          %s\n", joinEach(l.FaultSignals, func(f bacnet.LiftFault) string {
		return fmt.Sprintf("%s (%d)", f, f)
	}))
	status := make([]string, len(l.CarDoorStatus))
	for i, s := range l.CarDoorStatus {
		status[i] = fmt.Sprintf("%s: %s (%d)", l.CarDoorText[i], s, s)
	}
	fmt.Fprintf(w, "  Car Door Status:        %s\n", strings.Join(status, ", "))
	fmt.Fprintf(w, "  Car Moving Direction:   %s (%d)\n", l.CarMovingDirection, l.CarMovingDirection)
	fmt.Fprintf(w, "  Car Position:           %s (%d)\n", floorName(l.CarPosition), l.CarPosition)
	fmt.Fprintf(w, "  Passenger Alarm:        %t\n", l.PassengerAlarm)
	fmt.Fprintf(w, "  Energy Meter:           %g\n", l.EnergyMeter)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  ** Left/Right arrow, to change the selected lift **")
	fmt.Fprintln(w)
}

// PrintMenu prints the available keys.
func (c *Console) PrintMenu() {
	fmt.Fprintln(c.out, "Actions:")
	fmt.Fprintln(c.out, "  Selected Lift:")
	fmt.Fprintln(c.out, "  * F - Update Fault Signals")
	fmt.Fprintln(c.out, "  * P - Toggle Passenger Alarm")
	fmt.Fprintln(c.out, "  * D - Toggle Car Moving Direction")
	fmt.Fprintln(c.out, "  * C - Change Car Position")
	fmt.Fprintln(c.out, "  * S - Change Car Door Status")
	fmt.Fprintln(c.out, "  General:")
	fmt.Fprintln(c.out, "  * Q - Quit")
	fmt.Fprintf(c.out, "  * M - Update Group mode, for elevator group (%d)\n", database.LiftGroupInstance)
	fmt.Fprintln(c.out, "  * G - Print global status")
	fmt.Fprintln(c.out)
}

// FormatLandingCall renders a landing call the way the console prints it.
func FormatLandingCall(call bacnet.LandingCallStatus) string {
	switch call.Command {
	case bacnet.LandingCallCommandDirection:
		return fmt.Sprintf("FloorNumber: %d, Direction: %s, FloorText: %s", call.FloorNumber, call.Direction, call.FloorText)
	case bacnet.LandingCallCommandDestination:
		return fmt.Sprintf("FloorNumber: %d, Destination: %d, FloorText: %s", call.FloorNumber, call.Destination, call.FloorText)
	}
	return "N/A"
}

// PrintGlobalStatus prints the floors and the landing calls of the group
// of lifts.
func (c *Console) PrintGlobalStatus() {
	w := c.out
	fmt.Fprintln(w, "Current system status:")

	floors := make([]string, len(database.FloorText))
	for i, name := range database.FloorText {
		floors[i] = fmt.Sprintf("%s(%d)", name, i)
	}
	fmt.Fprintf(w, "  Floors(%d): %s\n", len(database.FloorText), strings.Join(floors, ", "))

	g, err := c.db.Group(database.LiftGroupInstance)
	if err != nil {
		c.failed("Global status", err)
		return
	}
	fmt.Fprintf(w, "  Lift Group object (%d):\n", g.Instance)
	fmt.Fprintf(w, "    Group Mode: %s\n", g.GroupMode)
	fmt.Fprintf(w, "    Landing Call Status: %s\n", FormatLandingCall(g.LandingCallControl))
	fmt.Fprintln(w, "    Lift Landing Calls:")
	for i, call := range g.LandingCalls {
		fmt.Fprintf(w, "      [%d]: %s\n", i, FormatLandingCall(call))
	}
	fmt.Fprintln(w)
}
