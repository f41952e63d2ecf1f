package main

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/portal-backend/internal/config"
	"github.com/edupulse/portal-backend/internal/database"
	"github.com/edupulse/portal-backend/internal/logger"
	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/repository"
	"github.com/edupulse/portal-backend/internal/service"
)

// Seeds a demo batch of students and a publishable exam schedule: one exam
// already finished, one opening within the hour, and one a few days out.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)

	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, authService, log)
	examService := service.NewExamService(examRepo, rdb, log)

	fmt.Println("=== Seeding demo students ===")

	names := []string{
		"Ava Thompson", "Liam Carter", "Noah Bennett", "Mia Alvarez", "Ethan Brooks",
		"Sofia Nguyen", "Lucas Rivera", "Emma Patel", "Oliver Kim", "Isla Morgan",
		"Jack Murphy", "Amelia Ross", "Leo Fischer", "Chloe Dawson", "Henry Okafor",
		"Grace Lindqvist", "Max Romero", "Ella Novak", "Arjun Mehta", "Lily Zhang",
	}

	created := 0
	for i, name := range names {
		req := &model.CreateStudentRequest{
			EnrollmentNo: fmt.Sprintf("EP%05d", i+1),
			Email:        fmt.Sprintf("student%d@edupulse.test", i+1),
			Name:         name,
			Batch:        "2026",
			Password:     "edupulse",
		}
		if _, err := studentService.Create(ctx, req); err != nil {
			fmt.Printf("Error creating student %s: %v\n", req.EnrollmentNo, err)
			continue
		}
		created++
	}
	fmt.Printf("Created %d/%d students\n", created, len(names))

	fmt.Println("=== Seeding demo exams ===")

	now := time.Now()
	demoExams := []model.CreateExamRequest{
		{
			ExamName:      "algebra-midterm-b1",
			StartDate:     now.AddDate(0, 0, -2).Format(model.DateLayout),
			StartTime:     "09:00",
			TotalExamTime: 90,
			Subjects:      []string{"Algebra"},
		},
		{
			ExamName:      "physics-final-b1",
			StartDate:     now.Format(model.DateLayout),
			StartTime:     now.Add(45 * time.Minute).Format(model.TimeLayout),
			TotalExamTime: 120,
			Subjects:      []string{"Physics"},
		},
		{
			ExamName:      "chemistry-final-b1",
			StartDate:     now.AddDate(0, 0, 3).Format(model.DateLayout),
			StartTime:     "13:30",
			TotalExamTime: 120,
			Subjects:      []string{"Chemistry"},
		},
	}

	for _, req := range demoExams {
		exam, err := examService.Create(ctx, &req)
		if err != nil {
			fmt.Printf("Error creating exam %s: %v\n", req.ExamName, err)
			continue
		}
		if _, err := examService.Publish(ctx, exam.ExamID); err != nil {
			fmt.Printf("Error publishing exam %s: %v\n", req.ExamName, err)
			continue
		}
		fmt.Printf("Published %s (%s %s, %d min)\n", exam.ExamName, exam.StartDate, exam.StartTime, exam.TotalExamTime)
	}

	fmt.Println("\nSeed completed.")
}
