// Command schedulerctl is a thin HTTP client over the job scheduler's
// REST API, for operators who'd rather not hand-craft curl calls.
package main

func main() {
	Execute()
}
