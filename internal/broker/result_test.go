package broker

import "testing"

func TestRenderSkipsVersionInfoAndEmptyMetadata(t *testing.T) {
	r := ResultRecord{
		Success:       true,
		ExecutionTime: "0.120s",
		ReturnCode:    0,
		Metadata: map[string]any{
			"version_info": "3.12.0",
			"exit_reason":  "completed",
			"empty_field":  "",
		},
	}
	got := r.Render()
	want := "Exit Reason: completed\nExecution Time: 0.120s\nReturn Code: 0"
	if got != want {
		t.Fatalf("unexpected render:\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderIncludesErrorWhenNotSuccessful(t *testing.T) {
	r := ResultRecord{
		Success:       false,
		ExecutionTime: "2.000s",
		ReturnCode:    1,
		ErrorKind:     "TimeoutError",
		ErrorMessage:  "agent did not reply in time",
	}
	got := r.Render()
	want := "Execution Time: 2.000s\nReturn Code: 1\nError: [TimeoutError] agent did not reply in time"
	if got != want {
		t.Fatalf("unexpected render:\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderIncludesStdoutAndStderrWhenPresent(t *testing.T) {
	r := ResultRecord{
		Success:       true,
		ExecutionTime: "0.010s",
		ReturnCode:    0,
		Stdout:        "hello",
		Stderr:        "warning: deprecated",
	}
	got := r.Render()
	want := "Execution Time: 0.010s\nReturn Code: 0\nStandard Output:\nhello\nStandard Error:\nwarning: deprecated"
	if got != want {
		t.Fatalf("unexpected render:\n got: %q\nwant: %q", got, want)
	}
}

func TestValidateRequiresExplanationOnFailure(t *testing.T) {
	r := ResultRecord{Success: false}
	if err := r.Validate(); err == nil {
		t.Fatal("expected validation error for unexplained failure")
	}

	r.ErrorKind = "Unexpected"
	if err := r.Validate(); err != nil {
		t.Fatalf("expected validation to pass once errorKind is set: %v", err)
	}
}

func TestValidateAlwaysPassesOnSuccess(t *testing.T) {
	r := ResultRecord{Success: true}
	if err := r.Validate(); err != nil {
		t.Fatalf("success should never fail validation: %v", err)
	}
}
