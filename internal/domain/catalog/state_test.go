package catalog

import "testing"

func TestRequestStatus_IsValid(t *testing.T) {
	for _, s := range AllRequestStatuses() {
		if !s.IsValid() {
			t.Errorf("IsValid() = false for %s, want true", s)
		}
	}

	for _, s := range []RequestStatus{"", "PENDING_REVIEW", "draft", "revision"} {
		if s.IsValid() {
			t.Errorf("IsValid() = true for %q, want false", s)
		}
	}
}

func TestRequestStatus_Predicates(t *testing.T) {
	tests := []struct {
		status     RequestStatus
		final      bool
		reviewable bool
		editable   bool
		deletable  bool
	}{
		{RequestPendingReview, false, true, true, true},
		{RequestNeedsModification, false, false, true, true},
		{RequestApproved, true, false, false, false},
		{RequestRejected, true, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsFinal(); got != tt.final {
				t.Errorf("IsFinal() = %v, want %v", got, tt.final)
			}
			if got := tt.status.IsReviewable(); got != tt.reviewable {
				t.Errorf("IsReviewable() = %v, want %v", got, tt.reviewable)
			}
			if got := tt.status.IsEditable(); got != tt.editable {
				t.Errorf("IsEditable() = %v, want %v", got, tt.editable)
			}
			if got := tt.status.IsDeletable(); got != tt.deletable {
				t.Errorf("IsDeletable() = %v, want %v", got, tt.deletable)
			}
		})
	}
}

func TestRequestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from RequestStatus
		to   RequestStatus
		want bool
	}{
		{RequestPendingReview, RequestApproved, true},
		{RequestPendingReview, RequestRejected, true},
		{RequestPendingReview, RequestNeedsModification, true},
		{RequestPendingReview, RequestPendingReview, true},
		{RequestNeedsModification, RequestPendingReview, true},
		{RequestNeedsModification, RequestApproved, false},
		{RequestApproved, RequestPendingReview, false},
		{RequestRejected, RequestPendingReview, false},
		{RequestRejected, RequestApproved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseRequestStatus(t *testing.T) {
	got, err := ParseRequestStatus("needs_modification")
	if err != nil {
		t.Fatalf("ParseRequestStatus() error = %v", err)
	}
	if got != RequestNeedsModification {
		t.Errorf("ParseRequestStatus() = %v, want %v", got, RequestNeedsModification)
	}

	if _, err := ParseRequestStatus("revision"); err == nil {
		t.Error("ParseRequestStatus(revision) should fail")
	}
}

func TestServiceStatus_Predicates(t *testing.T) {
	tests := []struct {
		status       ServiceStatus
		published    bool
		configurable bool
		listed       bool
	}{
		{ServiceDraft, false, false, false},
		{ServicePending, false, false, false},
		{ServiceReadyToPublish, false, true, true},
		{ServicePublished, true, true, true},
		{ServiceActive, true, false, true},
		{ServiceInactive, false, false, false},
		{ServiceMaintenance, false, false, false},
		{ServiceRejected, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if !tt.status.IsValid() {
				t.Fatalf("IsValid() = false for %s", tt.status)
			}
			if got := tt.status.IsPublished(); got != tt.published {
				t.Errorf("IsPublished() = %v, want %v", got, tt.published)
			}
			if got := tt.status.IsConfigurable(); got != tt.configurable {
				t.Errorf("IsConfigurable() = %v, want %v", got, tt.configurable)
			}
			if got := tt.status.IsListed(); got != tt.listed {
				t.Errorf("IsListed() = %v, want %v", got, tt.listed)
			}
		})
	}
}

func TestServiceStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ServiceStatus
		to   ServiceStatus
		want bool
	}{
		{ServiceReadyToPublish, ServicePublished, true},
		{ServiceReadyToPublish, ServiceActive, false},
		{ServicePublished, ServiceReadyToPublish, true},
		{ServiceActive, ServiceReadyToPublish, true},
		{ServiceMaintenance, ServiceReadyToPublish, false},
		{ServiceInactive, ServiceActive, true},
		{ServiceRejected, ServiceDraft, false},
		{ServiceDraft, ServicePending, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestServiceStatus_NextValidStatusesIsCopy(t *testing.T) {
	next := ServicePublished.NextValidStatuses()
	if len(next) != 4 {
		t.Fatalf("NextValidStatuses() length = %d, want 4", len(next))
	}
	next[0] = ServiceRejected
	if ServicePublished.NextValidStatuses()[0] == ServiceRejected {
		t.Error("NextValidStatuses() exposed the transition table")
	}
}

func TestParseServiceStatus(t *testing.T) {
	if _, err := ParseServiceStatus("aprobado"); err == nil {
		t.Error("ParseServiceStatus(aprobado) should fail")
	}
	got, err := ParseServiceStatus("ready_to_publish")
	if err != nil || got != ServiceReadyToPublish {
		t.Errorf("ParseServiceStatus() = %v, %v", got, err)
	}
}
