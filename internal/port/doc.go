// Package port checks host port availability for the analysis service.
//
// Before "up" starts the container, the published port must be free;
// otherwise Docker would fail the bind halfway through the start. The scanner
// asks the OS directly with net.Listen / net.ListenPacket rather than parsing
// /proc or calling lsof, which may need elevated permissions.
package port
