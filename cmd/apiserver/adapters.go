package main

import (
	"github.com/turtacn/NERRecon/internal/app"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
)

// healthCheckers exposes the backend checks as readiness checkers.
func healthCheckers(checks []app.Check) []handlers.HealthChecker {
	out := make([]handlers.HealthChecker, 0, len(checks))
	for _, c := range checks {
		out = append(out, handlers.CheckFunc{Component: c.Name, Fn: c.Fn})
	}
	return out
}

//Personal.AI order the ending
