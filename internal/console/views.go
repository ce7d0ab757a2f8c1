package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
)

const (
	columnReference = 15
	columnService   = 10
	columnDate      = 12
	columnSeats     = 7
	columnFare      = 12
	columnStatus    = 12
	tableWidth      = columnReference + columnService + columnDate + columnSeats + columnFare + columnStatus
)

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func (session *Session) renderService(train ledger.TrainService) {
	session.println(session.theme.emphasis.Render(fmt.Sprintf("    Service: %s", train.ID())))
	session.printf("    Name: %s (%s)\n", train.Name(), train.Label())
	session.printf("    Route: %s -> %s\n", train.Route().Source(), train.Route().Destination())
	session.printf("    Total Seats: %d, Base Fare: %s\n", train.TotalSeats(), train.BaseFare())
	if details, ok := train.Express(); ok {
		session.printf("    Pantry Car: %s\n", yesNo(details.PantryCar))
	}
	session.println("        Schedule:")
	for _, stop := range train.Route().Schedule() {
		session.printf("        - %s | Arr: %s | Dep: %s\n", stop.Station, stop.Arrival, stop.Departure)
	}
}

func (session *Session) renderAvailability(report []ledger.ServiceAvailability) {
	for _, entry := range report {
		session.renderService(entry.Service)
		session.println(session.theme.notice.Render(fmt.Sprintf("    Available Seats on %s: %d", entry.Date, entry.Available)))
		session.rule(22)
	}
}

func (session *Session) renderBooking(view ledger.BookingView) {
	booking := view.Booking
	session.println(session.theme.heading.Render(fmt.Sprintf("--- Booking Details (Reference: %s) ---", booking.Reference())))
	session.printf("    Service: %s, Date: %s\n", booking.ServiceID(), booking.Date())
	status := booking.Status().String()
	if view.Rank > 0 {
		status = fmt.Sprintf("%s (WL #%d)", status, view.Rank)
	}
	session.printf("    Booking Status: %s\n", status)
	session.printf("    Total Fare Paid: %s\n", booking.Fare())
	riders := booking.Riders()
	session.printf("    Riders (%d):\n", len(riders))
	for _, rider := range riders {
		session.printf("    Name: %s, Age: %d, Gender: %s\n", rider.Name(), rider.Age(), rider.Gender())
	}
	session.rule(49)
}

func (session *Session) renderBookingTable(bookings []ledger.Booking) {
	header := padRight("Reference", columnReference) +
		padRight("Service", columnService) +
		padRight("Date", columnDate) +
		padRight("Seats", columnSeats) +
		padRight("Fare", columnFare) +
		"Status"
	session.println(session.theme.emphasis.Render(header))
	session.rule(tableWidth)
	for _, booking := range bookings {
		row := padRight(booking.Reference().String(), columnReference) +
			padRight(booking.ServiceID().String(), columnService) +
			padRight(booking.Date().String(), columnDate) +
			padRight(fmt.Sprintf("%d", booking.Seats()), columnSeats) +
			padRight(booking.Fare().String(), columnFare) +
			booking.Status().String()
		session.println(row)
	}
	session.rule(tableWidth)
	session.printf("Total bookings: %d\n", len(bookings))
}

func (session *Session) renderHistory(reference ledger.Reference, events []ledger.TransactionEvent) {
	session.banner(fmt.Sprintf("Transaction History for %s", reference))
	if len(events) == 0 {
		session.notify("No transaction records found for this reference.")
		return
	}
	for _, event := range events {
		session.printf("%s | %s | %s | %s\n", event.RecordedAt.UTC().Format(time.RFC3339), event.Reference, event.Kind, event.Status)
	}
	session.rule(ruleWidth)
}

func padRight(value string, width int) string {
	if len(value) >= width {
		return value + " "
	}
	return value + strings.Repeat(" ", width-len(value))
}
