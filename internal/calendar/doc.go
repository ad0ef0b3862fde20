// Package calendar wraps the Google Calendar API behind the Gateway
// interface consumed by the action dispatcher and the HTTP handlers.
// All mutations are scoped to a single calendar id (defaulting to the
// caller's primary calendar) and all instants cross the wire in the fixed
// display timezone while being compared in UTC internally.
package calendar
