// Package repository holds the in-memory query and mutation operations over a
// users document. Nothing here performs I/O; persistence is the caller's job.
package repository

import (
	"strings"

	"github.com/userdirectory/core/internal/domain/entities"
)

// FindByID returns the first user whose id matches exactly.
func FindByID(doc *entities.Document, id int) (entities.User, bool) {
	i := indexOf(doc, id)
	if i < 0 {
		return entities.User{}, false
	}
	return doc.Users[i], true
}

// FindByCity returns users whose city equals city, ignoring case.
func FindByCity(doc *entities.Document, city string) []entities.User {
	needle := strings.ToLower(city)
	return filter(doc, func(u entities.User) bool {
		return strings.ToLower(u.City) == needle
	})
}

// FindByOccupation returns users whose occupation contains job, ignoring case.
// Job titles are phrases, so this is a substring match unlike FindByCity.
func FindByOccupation(doc *entities.Document, job string) []entities.User {
	needle := strings.ToLower(job)
	return filter(doc, func(u entities.User) bool {
		return strings.Contains(strings.ToLower(u.Occupation), needle)
	})
}

// NextID returns one past the highest id in the document, or 1 when empty.
func NextID(doc *entities.Document) int {
	max := 0
	for _, u := range doc.Users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max + 1
}

// Insert assigns a fresh id to user, appends it and recounts the document.
func Insert(doc *entities.Document, user entities.User) entities.User {
	user.ID = NextID(doc)
	doc.Users = append(doc.Users, user)
	doc.Recount()
	return user
}

// Update merges patch into the user with the given id. The id itself can not
// be changed. The returned bool is false when no such user exists.
func Update(doc *entities.Document, id int, patch entities.Fields) (entities.User, bool) {
	i := indexOf(doc, id)
	if i < 0 {
		return entities.User{}, false
	}

	updated := doc.Users[i].Clone()
	updated.Apply(patch)
	updated.ID = id

	doc.Users[i] = updated
	return updated, true
}

// Delete removes the user with the given id and recounts the document.
func Delete(doc *entities.Document, id int) (entities.User, bool) {
	i := indexOf(doc, id)
	if i < 0 {
		return entities.User{}, false
	}

	removed := doc.Users[i]
	doc.Users = append(doc.Users[:i], doc.Users[i+1:]...)
	doc.Recount()
	return removed, true
}

func indexOf(doc *entities.Document, id int) int {
	for i, u := range doc.Users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func filter(doc *entities.Document, keep func(entities.User) bool) []entities.User {
	matches := []entities.User{}
	for _, u := range doc.Users {
		if keep(u) {
			matches = append(matches, u)
		}
	}
	return matches
}
