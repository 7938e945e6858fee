package resource

import (
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

const (
	CollectionCourses    = "courses"
	CollectionSubjects   = "subjects"
	CollectionStudents   = "students"
	CollectionGrades     = "grades"
	CollectionAttendance = "attendance"
)

var Courses = Schema{
	Name:  CollectionCourses,
	Label: "Course",
	Fields: []Field{
		{Name: "courseCode", Label: "course code", Kind: KindString, Required: true, Case: CaseUpper},
		{Name: "courseName", Label: "course name", Kind: KindString, Required: true, Case: CaseTitle},
		{Name: "courseDuration", Label: "course duration", Kind: KindNumber, Required: true, Range: between(1, 10)},
		{Name: "courseDescription", Label: "course description", Kind: KindString},
	},
	Unique: [][]string{{"courseCode"}, {"courseName"}},
	SortBy: "courseName",
}

var Subjects = Schema{
	Name:  CollectionSubjects,
	Label: "Subject",
	Fields: []Field{
		{Name: "subjectCode", Label: "subject code", Kind: KindString, Required: true, Case: CaseUpper},
		{Name: "subjectName", Label: "subject name", Kind: KindString, Required: true, Case: CaseTitle},
		{Name: "subjectCredit", Label: "subject credit", Kind: KindNumber, Required: true, Range: between(0, 10)},
		{Name: "semester", Label: "semester", Kind: KindNumber, Required: true, Range: between(1, 12)},
		{Name: "course", Label: "course", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionCourses, Display: []string{"courseCode", "courseName"}}},
	},
	Unique: [][]string{{"subjectCode"}, {"subjectName"}},
	SortBy: "subjectName",
}

var Students = Schema{
	Name:  CollectionStudents,
	Label: "Student",
	Fields: []Field{
		{Name: "enrollmentNumber", Label: "enrollment number", Kind: KindString, Required: true, Case: CaseUpper},
		{Name: "fullName", Label: "full name", Kind: KindString, Required: true, Case: CaseTitle},
		{Name: "email", Label: "email", Kind: KindEmail, Required: true},
		{Name: "contactNumber", Label: "contact number", Kind: KindString, Required: true},
		{Name: "gender", Label: "gender", Kind: KindEnum, Enum: []string{"male", "female", "other"}},
		{Name: "dateOfBirth", Label: "date of birth", Kind: KindDate},
		{Name: "course", Label: "course", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionCourses, Display: []string{"courseCode"}}},
		{Name: "semester", Label: "semester", Kind: KindNumber, Required: true, Range: between(1, 12)},
		{Name: "address", Label: "address", Kind: KindString},
	},
	Unique: [][]string{{"enrollmentNumber"}, {"email"}, {"contactNumber"}},
}

var Grades = Schema{
	Name:  CollectionGrades,
	Label: "Grade",
	Fields: []Field{
		{Name: "student", Label: "student", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionStudents, Display: []string{"enrollmentNumber", "fullName"}}},
		{Name: "subject", Label: "subject", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionSubjects, Display: []string{"subjectCode", "subjectName"}}},
		{Name: "examPeriod", Label: "exam period", Kind: KindString, Required: true, Case: CaseUpper},
		{Name: "practicalMarks", Label: "practical marks", Kind: KindNumber, Required: true, Range: between(0, 100)},
		{Name: "theoryMarks", Label: "theory marks", Kind: KindNumber, Required: true, Range: between(0, 100)},
		{Name: "gradePoint", Label: "grade point", Kind: KindNumber, Required: true, Range: between(0, 10)},
		{Name: "creditPoint", Label: "credit point", Kind: KindNumber, Required: true, Range: between(0, 10)},
	},
	Unique: [][]string{{"student", "subject", "examPeriod"}},
	Derive: deriveGradeTotals,
}

var Attendance = Schema{
	Name:  CollectionAttendance,
	Label: "Attendance",
	Fields: []Field{
		{Name: "student", Label: "student", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionStudents, Display: []string{"enrollmentNumber", "fullName"}}},
		{Name: "subject", Label: "subject", Kind: KindRef, Required: true,
			Ref: &Ref{Collection: CollectionSubjects, Display: []string{"subjectCode", "subjectName"}}},
		{Name: "date", Label: "date", Kind: KindDate, Required: true},
		{Name: "status", Label: "status", Kind: KindEnum, Required: true, Enum: []string{"present", "absent", "late", "excused"}},
		{Name: "remarks", Label: "remarks", Kind: KindString},
	},
	Unique: [][]string{{"student", "subject", "date"}},
}

// All lists the schemas served by the API, referenced collections first.
func All() []Schema {
	return []Schema{Courses, Subjects, Students, Grades, Attendance}
}

func deriveGradeTotals(doc models.Document) models.Document {
	practical, _ := doc["practicalMarks"].(float64)
	theory, _ := doc["theoryMarks"].(float64)
	gradePoint, _ := doc["gradePoint"].(float64)
	creditPoint, _ := doc["creditPoint"].(float64)
	return models.Document{
		"totalMarks":        practical + theory,
		"totalCreditPoints": gradePoint * creditPoint,
	}
}
