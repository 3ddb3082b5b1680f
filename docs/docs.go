package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "AIMEE Allocation Advisor",
    "description": "Chat-driven staffing advice, transfer proposals and their approval workflow",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/api/chat/message": {"post": {"tags": ["chat"], "summary": "Handle a chat message"}},
    "/api/chat/sessions/{id}": {
      "get": {"tags": ["chat"], "summary": "Conversation history"},
      "delete": {"tags": ["chat"], "summary": "Forget a session"}
    },
    "/api/chat/sessions/sweep": {"post": {"tags": ["chat"], "summary": "Purge idle sessions"}},
    "/api/suggestions": {"post": {"tags": ["suggestions"], "summary": "Compute and queue a transfer proposal"}},
    "/api/approvals": {"get": {"tags": ["approvals"], "summary": "List approvals"}},
    "/api/approvals/{id}": {"get": {"tags": ["approvals"], "summary": "Get one approval"}},
    "/api/approvals/{id}/action": {"post": {"tags": ["approvals"], "summary": "Approve or reject"}},
    "/api/approvals/bulk": {"post": {"tags": ["approvals"], "summary": "Approve or reject many"}},
    "/api/alerts": {"get": {"tags": ["alerts"], "summary": "Active alerts"}},
    "/api/alerts/resolve": {"post": {"tags": ["alerts"], "summary": "Run an alert through the advisor"}},
    "/api/locations": {"get": {"tags": ["inventory"], "summary": "Locations"}},
    "/api/processes": {"get": {"tags": ["inventory"], "summary": "Processes"}}
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
