// Package app is one of two same-named packages used by key tests.
package app

type Service struct{ Region string }

func NewService() *Service { return &Service{Region: "south"} }
