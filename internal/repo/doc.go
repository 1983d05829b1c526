// Package repo performs the version-control side of a deployment: turning
// the project directory into a Git repository, committing it, pointing it at
// a GitHub remote, and pushing.
//
// All Git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git, so that the operator's own
// credential helpers and SSH configuration apply to pushes unchanged.
package repo
