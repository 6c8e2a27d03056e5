package service

import (
	"context"

	"tuition/internal/domain"
	"tuition/internal/repository"
)

// StudentService exposes read-only student listings.
type StudentService struct {
	studentRepo repository.StudentRepository
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo repository.StudentRepository) *StudentService {
	return &StudentService{studentRepo: studentRepo}
}

// GetStudents returns every student with its balance and associated parents.
func (s *StudentService) GetStudents(ctx context.Context) ([]*domain.Student, error) {
	return s.studentRepo.GetAll(ctx)
}
