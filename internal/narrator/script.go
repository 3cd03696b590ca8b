package narrator

import "github.com/mittens-dev/pipeline-panic/internal/domain"

// Line is one scripted log entry.
type Line struct {
	Message string
	Level   domain.LogLevel
}

// Script is one canned pipeline run. The narrator has no opinion on
// outcomes; it just reads whichever script matches the client's decision.
type Script struct {
	Name  string
	Lines []Line
}

var successScript = Script{
	Name: "success",
	Lines: []Line{
		{"Initializing deployment pipeline...", domain.LevelInfo},
		{"Compiling sources (3 packages)...", domain.LevelInfo},
		{"Build artifacts produced in 12.4s", domain.LevelSuccess},
		{"Running test suite: 148 tests", domain.LevelInfo},
		{"All tests passed", domain.LevelSuccess},
		{"Pushing image to registry...", domain.LevelInfo},
		{"Rolling out to production (3 replicas)...", domain.LevelInfo},
		{"Health checks green on all replicas", domain.LevelSuccess},
		{"Deployment complete. All systems nominal.", domain.LevelSuccess},
	},
}

var failureScripts = []Script{
	{
		Name: "build-broken",
		Lines: []Line{
			{"Initializing deployment pipeline...", domain.LevelInfo},
			{"Compiling sources (3 packages)...", domain.LevelInfo},
			{"build/main.go:42: syntax error: unexpected 'meow'", domain.LevelError},
			{"Build failed. A cat may have walked across the keyboard.", domain.LevelError},
		},
	},
	{
		Name: "tests-failing",
		Lines: []Line{
			{"Initializing deployment pipeline...", domain.LevelInfo},
			{"Compiling sources (3 packages)...", domain.LevelInfo},
			{"Build artifacts produced in 11.9s", domain.LevelSuccess},
			{"Running test suite: 148 tests", domain.LevelInfo},
			{"FAIL: TestCheckoutFlow (paw print found in fixture data)", domain.LevelError},
			{"FAIL: TestInventorySync", domain.LevelError},
			{"146 passed, 2 failed", domain.LevelWarning},
			{"Deployment aborted: test suite red.", domain.LevelError},
		},
	},
	{
		Name: "rollout-rollback",
		Lines: []Line{
			{"Initializing deployment pipeline...", domain.LevelInfo},
			{"Compiling sources (3 packages)...", domain.LevelInfo},
			{"Build artifacts produced in 12.1s", domain.LevelSuccess},
			{"Running test suite: 148 tests", domain.LevelInfo},
			{"All tests passed", domain.LevelSuccess},
			{"Pushing image to registry...", domain.LevelInfo},
			{"Rolling out to production (3 replicas)...", domain.LevelInfo},
			{"Replica 2 failing health checks", domain.LevelWarning},
			{"Replica 2 crash-looping: connection chewed through", domain.LevelError},
			{"Rolling back to previous release...", domain.LevelWarning},
			{"Deployment failed. Rollback complete.", domain.LevelError},
		},
	},
}
