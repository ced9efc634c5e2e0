package bucket

import "testing"

func TestUserBucketNameDeterministic(t *testing.T) {
	a := UserBucketName("contentory-user", "550e8400-e29b-41d4-a716-446655440000")
	b := UserBucketName("contentory-user", "550e8400-e29b-41d4-a716-446655440000")
	if a != b {
		t.Fatalf("same user produced different names: %q vs %q", a, b)
	}
	c := UserBucketName("contentory-user", "another-user")
	if a == c {
		t.Fatalf("different users collided on %q", a)
	}
}

func TestBucketNameStaysWithinLimits(t *testing.T) {
	name := UserBucketName("Contentory_User", "user")
	if len(name) > 63 {
		t.Fatalf("bucket name too long: %d chars", len(name))
	}
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			t.Fatalf("bucket name contains uppercase: %q", name)
		}
		if r == '_' {
			t.Fatalf("bucket name contains underscore: %q", name)
		}
	}
}

func TestContactBucketNameDistinctFromUser(t *testing.T) {
	if UserBucketName("p", "x") == ContactBucketName("p", "x") {
		t.Fatal("user and contact buckets must not collide for the same id")
	}
}
