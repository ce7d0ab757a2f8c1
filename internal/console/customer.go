package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
)

const maximumRiderAge = 119

func (session *Session) customerMenu(ctx context.Context) (menuAction, error) {
	session.banner("Customer Menu")
	session.println("1. Search Services by Route")
	session.println("2. Book New Ticket (Multi-Group)")
	session.println("3. View Booking by Reference")
	session.println("4. Cancel Booking (with Refund)")
	session.println("5. View Transaction History")
	session.println("6. Switch User")
	session.println("7. Exit System")
	session.rule(ruleWidth)
	choice, err := session.promptChoice()
	if err != nil {
		return actionExit, err
	}
	switch choice {
	case 1:
		err = session.searchRoutes()
	case 2:
		err = session.bookGroups(ctx)
	case 3:
		err = session.viewBooking()
	case 4:
		err = session.cancelBooking(ctx)
	case 5:
		err = session.transactionHistory(ctx)
	case 6:
		return actionSwitchUser, nil
	case 7:
		return actionExit, nil
	default:
		session.fail("Invalid choice. Please try again.")
	}
	return actionStay, err
}

func (session *Session) searchRoutes() error {
	source, err := session.prompt("Enter Source Station: ")
	if err != nil {
		return err
	}
	destination, err := session.prompt("Enter Destination Station: ")
	if err != nil {
		return err
	}
	date, err := session.prompt("Enter Date of Journey (MM/DD/YYYY): ")
	if err != nil {
		return err
	}
	report, searchErr := session.ledger.Search(source, destination, date)
	if searchErr != nil {
		session.fail("%v", searchErr)
		return nil
	}
	session.heading(fmt.Sprintf("Search Results (%s to %s on %s)", source, destination, date))
	if len(report) == 0 {
		session.notify("No direct services found from %s to %s.", source, destination)
		return nil
	}
	session.renderAvailability(report)
	return nil
}

// bookGroups collects up to MaxGroups independent requests and books them in
// one pass. A group with invalid input is skipped and the rest still proceed.
func (session *Session) bookGroups(ctx context.Context) error {
	session.banner("Multi-Group Ticket Coordinator")
	raw, err := session.prompt(fmt.Sprintf("How many separate groups do you wish to book (1-%d)? ", session.limits.MaxGroups))
	if err != nil {
		return err
	}
	groups, parseErr := parsePositive(raw)
	if parseErr != nil || groups > session.limits.MaxGroups {
		session.fail("Invalid group count. Returning to menu.")
		return nil
	}

	requests := make([]ledger.BookingRequest, 0, groups)
	for index := 1; index <= groups; index++ {
		request, ok, err := session.collectGroup(index)
		if err != nil {
			return err
		}
		if ok {
			requests = append(requests, request)
		}
	}
	if len(requests) == 0 {
		session.notify("No valid groups to book.")
		return nil
	}

	for _, result := range session.ledger.BookGroups(ctx, requests) {
		session.renderGroupResult(result)
	}
	session.banner("Coordination Complete.")
	return nil
}

func (session *Session) collectGroup(index int) (ledger.BookingRequest, bool, error) {
	session.println("")
	session.println(session.theme.heading.Render(fmt.Sprintf("--- Group %d Details ---", index)))
	serviceID, err := session.prompt("Enter Service ID: ")
	if err != nil {
		return ledger.BookingRequest{}, false, err
	}
	date, err := session.prompt("Enter Date of Journey (MM/DD/YYYY): ")
	if err != nil {
		return ledger.BookingRequest{}, false, err
	}
	if _, dateErr := ledger.ParseTravelDate(date); dateErr != nil {
		session.fail("Invalid date format. Skipping group %d.", index)
		return ledger.BookingRequest{}, false, nil
	}
	raw, err := session.prompt(fmt.Sprintf("Number of riders in this group (max %d): ", session.limits.MaxRidersPerGroup))
	if err != nil {
		return ledger.BookingRequest{}, false, err
	}
	count, parseErr := parsePositive(raw)
	if parseErr != nil || count > session.limits.MaxRidersPerGroup {
		session.fail("Invalid rider count. Skipping group %d.", index)
		return ledger.BookingRequest{}, false, nil
	}
	riders := make([]ledger.Rider, 0, count)
	for position := 1; position <= count; position++ {
		rider, err := session.collectRider(index, position)
		if err != nil {
			return ledger.BookingRequest{}, false, err
		}
		riders = append(riders, rider)
	}
	return ledger.BookingRequest{ServiceID: serviceID, Date: date, Riders: riders}, true, nil
}

// collectRider re-prompts until the rider details validate.
func (session *Session) collectRider(group int, position int) (ledger.Rider, error) {
	session.printf("    --- Rider %d Details (Group %d) ---\n", position, group)
	for {
		name, err := session.prompt("    Name: ")
		if err != nil {
			return ledger.Rider{}, err
		}
		age, err := session.promptInt("    Age: ", 1, maximumRiderAge)
		if err != nil {
			return ledger.Rider{}, err
		}
		gender, err := session.prompt("    Gender (M/F/O): ")
		if err != nil {
			return ledger.Rider{}, err
		}
		rider, riderErr := ledger.NewRider(name, age, gender)
		if riderErr == nil {
			return rider, nil
		}
		session.fail("%v. Please re-enter rider %d.", riderErr, position)
	}
}

func (session *Session) renderGroupResult(result ledger.GroupResult) {
	outcome := result.Outcome
	switch {
	case errors.Is(result.Err, ledger.ErrPaymentDeclined):
		session.fail("Transaction failed: payment declined (service %s). Ticket not issued.", result.Request.ServiceID)
	case errors.Is(result.Err, ledger.ErrServiceNotFound):
		session.fail("Booking failed: service %s not found.", result.Request.ServiceID)
	case result.Err != nil:
		session.fail("Booking failed for service %s: %v", result.Request.ServiceID, result.Err)
	case outcome.Status == ledger.BookingStatusWaitlisted:
		session.notify("Booking %s placed on waitlist (WL #%d). Fare paid: %s", outcome.Reference, outcome.Rank, outcome.Fare)
	default:
		session.succeed("Group booked! Reference: %s | Status: %s | Fare paid: %s", outcome.Reference, outcome.Status, outcome.Fare)
	}
}

func (session *Session) viewBooking() error {
	reference, ok, err := session.promptReference()
	if err != nil || !ok {
		return err
	}
	view, findErr := session.ledger.FindBooking(reference)
	if findErr != nil {
		session.fail("Reference %s not found.", reference)
		return nil
	}
	session.renderBooking(view)
	return nil
}

func (session *Session) cancelBooking(ctx context.Context) error {
	reference, ok, err := session.promptReference()
	if err != nil || !ok {
		return err
	}
	outcome, cancelErr := session.ledger.Cancel(ctx, reference)
	switch {
	case errors.Is(cancelErr, ledger.ErrBookingNotFound):
		session.fail("Cancellation failed. Reference %s not found.", reference)
		return nil
	case errors.Is(cancelErr, ledger.ErrAlreadyCancelled):
		session.fail("Booking %s is already %s.", reference, ledger.BookingStatusCancelled)
		return nil
	case errors.Is(cancelErr, ledger.ErrServiceNotFound):
		session.fail("Cancellation failed. Associated service not found.")
		return nil
	case cancelErr != nil:
		session.fail("Cancellation failed: %v", cancelErr)
		return nil
	}
	if outcome.PreviousStatus == ledger.BookingStatusWaitlisted {
		session.succeed("Waitlist cancellation successful for reference %s.", reference)
	} else {
		session.succeed("Cancellation successful for reference %s.", reference)
	}
	session.printf("    Refund amount: %s\n", outcome.Refund)
	for _, promoted := range outcome.Promoted {
		session.notify("Promotion: reference %s confirmed from the waitlist.", promoted)
	}
	return nil
}

func (session *Session) transactionHistory(ctx context.Context) error {
	reference, ok, err := session.promptReference()
	if err != nil || !ok {
		return err
	}
	events, historyErr := session.ledger.History(ctx, reference)
	if historyErr != nil {
		session.fail("%v", historyErr)
		return nil
	}
	session.renderHistory(reference, events)
	return nil
}

func parsePositive(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%d is not positive", value)
	}
	return value, nil
}
