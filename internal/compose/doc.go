// Package compose generates and reads the container orchestration file for
// the analysis service.
//
// The generated file describes one service: the image built from the
// project's Dockerfile, the published port, the STREAMLIT_* environment,
// bind mounts for output/ and logs/, a health check against the service's
// readiness endpoint, and ctdeploy's run labels. Those labels use ${VAR}
// interpolation so that each "up" stamps its own run ID onto the containers.
package compose
