// Package docker provides Docker Engine API wrappers and Compose invocation
// for the ctdeploy CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - ctdeploy labels that tie containers to the "up" run that created them
//   - Listing the containers of a Compose project and aggregating their state
//   - docker compose down / build / up / stop, through either the compose
//     plugin or the legacy docker-compose binary
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
