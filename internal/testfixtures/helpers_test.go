package testfixtures

import "github.com/example/meeting-lifecycle/internal/application"

func startParams(definitionID string) application.StartWorkflowParams {
	return application.StartWorkflowParams{
		DefinitionID: definitionID,
		Target:       MeetingTarget("meeting-1"),
		RequesterID:  "requester-1",
	}
}
