// Package domain models queries against the lightning strike API.
//
// # Query Window
//
// A query covers a bounding box and a time window. The API accepts the
// window as two ISO-8601 instants joined by a double dash:
//
//	time=2020-06-20T00:00:00.000Z--2020-06-20T00:15:00.000Z
//
// Instants are always rendered in UTC with millisecond precision.
//
// # Bounding Box
//
// Four numbers in the order lower-left longitude, lower-left latitude,
// upper-right longitude, upper-right latitude. Latitudes are limited to
// [-90, 90]. Longitudes may run past ±180 so that a box can cross the
// antimeridian, e.g. [170, -50, 190, -30].
//
// # Finalisation
//
// Strikes arrive at the API out of order for a short time after they occur.
// A window is treated as finalised once its end is older than the grace
// period (FinalisedGracePeriod, 10 minutes):
//
//	horizon = now - grace
//
// Closed-window fetches reject any window ending at or after the horizon.
// The streaming path waits until each chunk end crosses the horizon.
//
// # Chunks
//
// Long windows are split into fixed-duration chunks starting at the window
// start. The last chunk is truncated when the window length is not a
// multiple of the chunk duration:
//
//	[00:00, 00:40) by 15m -> [00:00, 00:15) [00:15, 00:30) [00:30, 00:40)
//
// # Formats
//
// Responses come in one of seven wire formats selected by MIME type in the
// Accept header. See Format for the full list and their aliases.
package domain
