// Package access centralises the role/approval branching that every gated
// view consumes, so pages derive their variant from one function instead of
// re-deriving it locally.
package access

import "github.com/coursehub/coursehub-api/internal/models"

// Level is the resolved access class for a user/profile pair.
type Level string

const (
	Anonymous       Level = "anonymous"
	ProfileDegraded Level = "profile_unavailable"
	PendingApproval Level = "pending_approval"
	Rejected        Level = "rejected"
	Student         Level = "student"
	Professor       Level = "professor"
	Admin           Level = "admin"
)

// Resolve maps a session user and profile to an access level.
// A signed-in user with no profile is "profile unavailable", never anonymous:
// the session is real even when the profile row could not be loaded.
func Resolve(user *models.SessionUser, profile *models.Profile) Level {
	if user == nil {
		return Anonymous
	}
	if profile == nil {
		return ProfileDegraded
	}
	if profile.Role == models.RoleAdmin {
		return Admin
	}
	switch profile.ApprovalStatus {
	case models.ApprovalPending:
		return PendingApproval
	case models.ApprovalRejected:
		return Rejected
	}
	if profile.Role == models.RoleProfessor {
		return Professor
	}
	return Student
}

// CanViewChapter reports whether the level may open a chapter with the given
// status. Admin may view any status; everyone else only published chapters.
func CanViewChapter(level Level, status models.ChapterStatus) bool {
	if level == Admin {
		return true
	}
	return status == models.ChapterPublished
}
