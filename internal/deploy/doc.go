// Package deploy runs the analysis service's container lifecycle.
//
// A deploy is strictly sequential: preflight, bind-mount directories,
// teardown of the previous containers, port check, image build, detached
// start, a fixed startup delay, and one status read. An optional health wait
// follows. The first failing step ends the run and later steps never start.
package deploy
