package access

import (
	"context"
	"sync"
	"time"
)

// In-memory implementations of the five rule-set stores. Each store guards
// its own rule set with its own RWMutex, so mutations on unrelated rule
// sets do not serialize against each other. Reads never block reads.

// MemoryGrantStore keeps permission grants as a role -> grant-key set.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string]map[grantKey]bool
}

type grantKey struct {
	resource string
	action   string
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]map[grantKey]bool)}
}

func (s *MemoryGrantStore) AddGrant(ctx context.Context, role, resource, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[role]
	if !ok {
		set = make(map[grantKey]bool)
		s.grants[role] = set
	}
	key := grantKey{resource: resource, action: action}
	if set[key] {
		return ErrAlreadyExists
	}
	set[key] = true
	return nil
}

func (s *MemoryGrantStore) RemoveGrant(ctx context.Context, role, resource, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[role]
	key := grantKey{resource: resource, action: action}
	if !ok || !set[key] {
		return ErrNotFound
	}
	delete(set, key)
	if len(set) == 0 {
		delete(s.grants, role)
	}
	return nil
}

func (s *MemoryGrantStore) HasGrant(ctx context.Context, role, resource, action string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[role][grantKey{resource: resource, action: action}], nil
}

func (s *MemoryGrantStore) GrantsOf(ctx context.Context, role string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Grant, 0, len(s.grants[role]))
	for key := range s.grants[role] {
		out = append(out, Grant{Role: role, Resource: key.resource, Action: key.action})
	}
	return out, nil
}

// MemoryMembershipStore keeps directed subject->group edges with a reverse
// index so MembersOf does not scan.
type MemoryMembershipStore struct {
	mu      sync.RWMutex
	groups  map[string]map[string]bool // subject -> groups
	members map[string]map[string]bool // group -> subjects
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		groups:  make(map[string]map[string]bool),
		members: make(map[string]map[string]bool),
	}
}

func (s *MemoryMembershipStore) AddMember(ctx context.Context, subject, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[subject][group] {
		return ErrAlreadyExists
	}
	if s.groups[subject] == nil {
		s.groups[subject] = make(map[string]bool)
	}
	if s.members[group] == nil {
		s.members[group] = make(map[string]bool)
	}
	s.groups[subject][group] = true
	s.members[group][subject] = true
	return nil
}

func (s *MemoryMembershipStore) RemoveMember(ctx context.Context, subject, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.groups[subject][group] {
		return ErrNotFound
	}
	delete(s.groups[subject], group)
	delete(s.members[group], subject)
	if len(s.groups[subject]) == 0 {
		delete(s.groups, subject)
	}
	if len(s.members[group]) == 0 {
		delete(s.members, group)
	}
	return nil
}

func (s *MemoryMembershipStore) GroupsOf(ctx context.Context, subject string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.groups[subject]))
	for g := range s.groups[subject] {
		out = append(out, g)
	}
	return out, nil
}

func (s *MemoryMembershipStore) MembersOf(ctx context.Context, group string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members[group]))
	for m := range s.members[group] {
		out = append(out, m)
	}
	return out, nil
}

// MemoryAttributeStore keeps subject and resource attributes with upsert
// semantics.
type MemoryAttributeStore struct {
	mu       sync.RWMutex
	subject  map[string]map[string]string
	resource map[string]map[string]string // key: type + "\x00" + id
}

func NewMemoryAttributeStore() *MemoryAttributeStore {
	return &MemoryAttributeStore{
		subject:  make(map[string]map[string]string),
		resource: make(map[string]map[string]string),
	}
}

func (s *MemoryAttributeStore) SetSubjectAttribute(ctx context.Context, subjectID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject[subjectID] == nil {
		s.subject[subjectID] = make(map[string]string)
	}
	s.subject[subjectID][key] = value
	return nil
}

func (s *MemoryAttributeStore) SubjectAttributes(ctx context.Context, subjectID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAttrs(s.subject[subjectID]), nil
}

func (s *MemoryAttributeStore) SetResourceAttribute(ctx context.Context, resourceType, resourceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := resourceType + "\x00" + resourceID
	if s.resource[rk] == nil {
		s.resource[rk] = make(map[string]string)
	}
	s.resource[rk][key] = value
	return nil
}

func (s *MemoryAttributeStore) ResourceAttributes(ctx context.Context, resourceType, resourceID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAttrs(s.resource[resourceType+"\x00"+resourceID]), nil
}

func copyAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MemoryPolicyStore keeps ABAC policy documents keyed by name.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*ABACPolicy
	order    []string // creation order, keeps listings stable
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*ABACPolicy)}
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *ABACPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.Name]; ok {
		return ErrAlreadyExists
	}
	p.CreatedAt = time.Now()
	cop := *p
	s.policies[p.Name] = &cop
	s.order = append(s.order, p.Name)
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, name string) (*ABACPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[name]
	if !ok {
		return nil, ErrNotFound
	}
	cop := *p
	return &cop, nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, activeOnly bool) ([]*ABACPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ABACPolicy, 0, len(s.policies))
	for _, name := range s.order {
		p, ok := s.policies[name]
		if !ok {
			continue
		}
		if activeOnly && !p.Active {
			continue
		}
		cop := *p
		out = append(out, &cop)
	}
	return out, nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[name]; !ok {
		return ErrNotFound
	}
	delete(s.policies, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryRelationshipStore keeps relationship edges as a single logical edge
// set; creation registers the edge in the same slice the traversal scans,
// so no separate sync step exists.
type MemoryRelationshipStore struct {
	mu    sync.RWMutex
	edges []*Relationship
}

func NewMemoryRelationshipStore() *MemoryRelationshipStore {
	return &MemoryRelationshipStore{edges: make([]*Relationship, 0)}
}

func (s *MemoryRelationshipStore) CreateRelationship(ctx context.Context, r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.edges {
		if *e == *r {
			return ErrAlreadyExists
		}
	}
	cop := *r
	s.edges = append(s.edges, &cop)
	return nil
}

func (s *MemoryRelationshipStore) ListRelationships(ctx context.Context, f RelationshipFilter) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Relationship, 0)
	for _, e := range s.edges {
		if f.Matches(e) {
			cop := *e
			out = append(out, &cop)
		}
	}
	return out, nil
}

func (s *MemoryRelationshipStore) DeleteRelationship(ctx context.Context, r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.edges {
		if *e == *r {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
