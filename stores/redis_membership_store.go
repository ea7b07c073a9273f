package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orialabs/access"
)

// RedisMembershipStore keeps membership edges in Redis sets, one forward set
// per subject (groupmem:s:{subject}) and one reverse set per group
// (groupmem:g:{group}) so MembersOf is a set read, not a scan.
type RedisMembershipStore struct {
	client *redis.Client
}

func NewRedisMembershipStore(client *redis.Client) *RedisMembershipStore {
	return &RedisMembershipStore{client: client}
}

func (r *RedisMembershipStore) subjectKey(subject string) string {
	return fmt.Sprintf("groupmem:s:%s", subject)
}

func (r *RedisMembershipStore) groupKey(group string) string {
	return fmt.Sprintf("groupmem:g:%s", group)
}

func (r *RedisMembershipStore) AddMember(ctx context.Context, subject, group string) error {
	added, err := r.client.SAdd(ctx, r.subjectKey(subject), group).Result()
	if err != nil {
		return err
	}
	if err := r.client.SAdd(ctx, r.groupKey(group), subject).Err(); err != nil {
		return err
	}
	if added == 0 {
		return access.ErrAlreadyExists
	}
	return nil
}

func (r *RedisMembershipStore) RemoveMember(ctx context.Context, subject, group string) error {
	removed, err := r.client.SRem(ctx, r.subjectKey(subject), group).Result()
	if err != nil {
		return err
	}
	if err := r.client.SRem(ctx, r.groupKey(group), subject).Err(); err != nil {
		return err
	}
	if removed == 0 {
		return access.ErrNotFound
	}
	return nil
}

func (r *RedisMembershipStore) GroupsOf(ctx context.Context, subject string) ([]string, error) {
	return r.client.SMembers(ctx, r.subjectKey(subject)).Result()
}

func (r *RedisMembershipStore) MembersOf(ctx context.Context, group string) ([]string, error) {
	return r.client.SMembers(ctx, r.groupKey(group)).Result()
}
