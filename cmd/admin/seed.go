package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"campuslink/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type courseFile struct {
	Courses []models.Course `yaml:"courses"`
}

// courseNamespace keeps generated course ids stable across reseeds.
var courseNamespace = uuid.MustParse("6f1c3b0e-8a52-4c1e-9d0b-2f4e7a9c5d31")

func (cli *commandLine) seedCourses(ctx context.Context, path string) (int, error) {
	data, err := readFileFunc(path)
	if err != nil {
		return 0, err
	}
	courses, err := parseCourses(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := cli.courses.Upsert(ctx, courses); err != nil {
		return 0, err
	}
	return len(courses), nil
}

func parseCourses(data []byte) ([]models.Course, error) {
	var f courseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i := range f.Courses {
		c := &f.Courses[i]
		c.Code = strings.TrimSpace(c.Code)
		switch {
		case c.Code == "":
			return nil, fmt.Errorf("course %d: code is required", i+1)
		case c.Name == "":
			return nil, fmt.Errorf("course %s: name is required", c.Code)
		case c.Credits <= 0:
			return nil, fmt.Errorf("course %s: credits must be positive", c.Code)
		}
		if c.Department == "" {
			c.Department, _, _ = strings.Cut(c.Code, " ")
		}
		if c.ID == "" {
			key := c.Code + "|" + c.Semester + "|" + strconv.Itoa(c.Year)
			c.ID = uuid.NewSHA1(courseNamespace, []byte(key)).String()
		}
	}
	return f.Courses, nil
}
