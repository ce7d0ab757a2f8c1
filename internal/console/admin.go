package console

import (
	"context"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
)

const maximumSeatsPerService = 100000

func (session *Session) adminMenu(ctx context.Context) (menuAction, error) {
	session.banner("Admin Menu")
	session.println("1. View All Services")
	session.println("2. View Service Availability by Date")
	session.println("3. Add New Express Service")
	session.println("4. Remove Service")
	session.println("5. View All Bookings")
	session.println("6. Process Waitlist (Manual)")
	session.println("7. Switch User")
	session.println("8. Exit System")
	session.rule(ruleWidth)
	choice, err := session.promptChoice()
	if err != nil {
		return actionExit, err
	}
	switch choice {
	case 1:
		session.listServices()
	case 2:
		err = session.showAvailability()
	case 3:
		err = session.addService(ctx)
	case 4:
		err = session.removeService(ctx)
	case 5:
		session.bookingsReport()
	case 6:
		err = session.processWaitlist(ctx)
	case 7:
		return actionSwitchUser, nil
	case 8:
		return actionExit, nil
	default:
		session.fail("Invalid choice. Please try again.")
	}
	return actionStay, err
}

func (session *Session) listServices() {
	session.heading("Available Services")
	services := session.ledger.Services()
	if len(services) == 0 {
		session.notify("No services currently available.")
		return
	}
	for _, train := range services {
		session.renderService(train)
		session.rule(22)
	}
}

func (session *Session) showAvailability() error {
	date, err := session.prompt("Enter Date of Journey (MM/DD/YYYY): ")
	if err != nil {
		return err
	}
	report, reportErr := session.ledger.ServicesOn(date)
	if reportErr != nil {
		session.fail("%v", reportErr)
		return nil
	}
	session.heading("Available Services for " + date)
	if len(report) == 0 {
		session.notify("No services currently available.")
		return nil
	}
	session.renderAvailability(report)
	return nil
}

func (session *Session) addService(ctx context.Context) error {
	session.heading("Add New Express Service")
	var definition ledger.ServiceDefinition
	var err error
	if definition.ID, err = session.prompt("Enter Service ID (e.g., ET003): "); err != nil {
		return err
	}
	if definition.Name, err = session.prompt("Enter Service Name: "); err != nil {
		return err
	}
	if definition.Source, err = session.prompt("Enter Source Station: "); err != nil {
		return err
	}
	if definition.Destination, err = session.prompt("Enter Destination Station: "); err != nil {
		return err
	}
	if definition.TotalSeats, err = session.promptInt("Enter Total Seats: ", 1, maximumSeatsPerService); err != nil {
		return err
	}
	for {
		if definition.BaseFare, err = session.prompt("Enter Base Fare: "); err != nil {
			return err
		}
		if _, parseErr := ledger.ParseAmountCents(definition.BaseFare); parseErr == nil {
			break
		}
		session.fail("Invalid fare. Enter a positive amount such as 55.00.")
	}
	pantry, err := session.prompt("Has Pantry Car (yes/no)? ")
	if err != nil {
		return err
	}
	definition.PantryCar = isAffirmative(pantry)

	train, addErr := session.ledger.AddService(ctx, definition)
	switch {
	case errors.Is(addErr, ledger.ErrServiceExists):
		session.fail("Service ID already exists.")
	case addErr != nil:
		session.fail("%v", addErr)
	default:
		session.succeed("New service %s added successfully.", train.ID())
	}
	return nil
}

func (session *Session) removeService(ctx context.Context) error {
	rawID, err := session.prompt("Enter Service ID to remove: ")
	if err != nil {
		return err
	}
	removeErr := session.ledger.RemoveService(ctx, rawID)
	switch {
	case errors.Is(removeErr, ledger.ErrServiceNotFound):
		session.fail("Service %s not found.", rawID)
	case removeErr != nil:
		session.fail("%v", removeErr)
	default:
		session.succeed("Service %s removed successfully.", rawID)
	}
	return nil
}

func (session *Session) bookingsReport() {
	session.banner("Admin Report: All Bookings")
	bookings := session.ledger.Bookings()
	if len(bookings) == 0 {
		session.notify("No bookings found in the system.")
		return
	}
	session.renderBookingTable(bookings)
}

func (session *Session) processWaitlist(ctx context.Context) error {
	rawID, err := session.prompt("Enter Service ID: ")
	if err != nil {
		return err
	}
	date, err := session.prompt("Enter Date of Journey (MM/DD/YYYY): ")
	if err != nil {
		return err
	}
	session.heading("Processing Waitlist for " + rawID + " on " + date)
	promoted, promoteErr := session.ledger.PromoteWaitlist(ctx, rawID, date)
	switch {
	case errors.Is(promoteErr, ledger.ErrServiceNotFound):
		session.fail("Service %s not found.", rawID)
		return nil
	case errors.Is(promoteErr, ledger.ErrInsufficientSeats):
		session.notify("No seats available to promote waitlist.")
		return nil
	case promoteErr != nil:
		session.fail("%v", promoteErr)
		return nil
	}
	for _, reference := range promoted {
		session.succeed("Promotion: reference %s confirmed.", reference)
	}
	if remaining, listErr := session.ledger.Waitlist(rawID, date); listErr == nil {
		session.printf("Updated waitlist for %s: %d entries remaining.\n", rawID, len(remaining))
	}
	return nil
}

func isAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
