// Package scenario runs suites of HTTP probe cases against a compose topology.
//
// A suite moves through the phases
//
//	idle → packaging → starting → awaiting-ready → probing → tearing-down → idle
//
// Packaging happens once per suite: the optional fixture setup command runs,
// then all archives are built in parallel. The start/await/probe/teardown
// cycle then repeats for every case, so each case sees a freshly started
// environment. Teardown runs after every start, whatever happened in between.
//
// The run gate is an explicit option. With the gate closed every case is
// reported as SKIPPED and nothing is set up, packaged or started.
//
// ## Suite Structure
//
//	name: docker-in-docker
//	fixtureDir: app
//	setup: ["npm", "install"]
//	artifacts:
//	  - archive: hello.zip
//	    files: [handler.js]
//	cases:
//	  - description: should work with docker in docker
//	    path: /dev/hello
//	    expected:
//	      message: Hello Node.js 12.x!
//
// ## Results
//
// A probe answering with the wrong message is FAILED. Any other error
// (packaging, start, readiness, transport, parse) is ERROR, with the
// phase it happened in; see ClassifyError.
package scenario
