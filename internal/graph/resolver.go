// Package graph exposes the registry over GraphQL.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/metrics"
	"github.com/docregistry/apiserver/internal/ratelimit"
	"github.com/docregistry/apiserver/internal/services"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

var errRateLimited = errors.New("too many login attempts")

// Deps are the collaborators resolvers call into.
type Deps struct {
	Issuer      *auth.Issuer
	Users       *services.UserService
	Persons     *services.PersonService
	Addresses   *services.AddressService
	Residencies *services.ResidencyService
	Documents   *services.DocumentService

	// Limiter throttles login attempts. nil disables throttling.
	Limiter *ratelimit.Limiter
	Logger  *logger.Logger
}

// Resolver holds the field resolvers of the schema.
type Resolver struct {
	issuer      *auth.Issuer
	users       *services.UserService
	persons     *services.PersonService
	addresses   *services.AddressService
	residencies *services.ResidencyService
	documents   *services.DocumentService
	limiter     *ratelimit.Limiter
	log         *logger.Logger
}

func NewResolver(deps Deps) *Resolver {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		issuer:      deps.Issuer,
		users:       deps.Users,
		persons:     deps.Persons,
		addresses:   deps.Addresses,
		residencies: deps.Residencies,
		documents:   deps.Documents,
		limiter:     deps.Limiter,
		log:         log.Named("graph"),
	}
}

type meResult struct {
	Status string
	User   *types.User
}

type loginResult struct {
	AccessToken string
	User        types.User
}

type personPage struct {
	Items []types.Person
	Total int
}

type documentPage struct {
	Items []types.Document
	Total int
}

// Identity

func (r *Resolver) me(p graphql.ResolveParams) (interface{}, error) {
	claims, err := r.issuer.Authenticate(requestFrom(p.Context).Authorization)
	if err != nil {
		return meResult{Status: "error"}, nil
	}
	user, err := r.users.GetByID(p.Context, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return meResult{Status: "error"}, nil
		}
		return nil, r.clientError(p.Context, err)
	}
	return meResult{Status: "ok", User: &user}, nil
}

func (r *Resolver) register(p graphql.ResolveParams) (interface{}, error) {
	in := argObject(p.Args, "input")
	user, err := r.users.Register(p.Context, services.RegisterInput{
		Username:    argString(in, "username"),
		DisplayName: argString(in, "displayName"),
		Email:       argString(in, "email"),
		Division:    argString(in, "division"),
		Password:    argString(in, "password"),
	})
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return user, nil
}

func (r *Resolver) login(p graphql.ResolveParams) (interface{}, error) {
	req := requestFrom(p.Context)
	email := strings.ToLower(strings.TrimSpace(argString(p.Args, "email")))

	if err := r.throttleLogin(p, req.ClientIP, email); err != nil {
		metrics.LoginTotal.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	user, err := r.users.Login(p.Context, email, argString(p.Args, "password"))
	if err != nil {
		outcome := "error"
		if errors.Is(err, auth.ErrInvalidCredentials) {
			outcome = "invalid_credentials"
		}
		metrics.LoginTotal.WithLabelValues(outcome).Inc()
		return nil, r.clientError(p.Context, err)
	}

	pair, err := r.issuer.Issue(user)
	if err != nil {
		metrics.LoginTotal.WithLabelValues("error").Inc()
		return nil, r.clientError(p.Context, err)
	}
	req.Session.SetRefreshToken(pair.RefreshToken, pair.RefreshExpiresAt)
	metrics.LoginTotal.WithLabelValues("ok").Inc()
	r.log.WithContext(p.Context).Info("login", zap.Int("user_id", user.ID))

	return loginResult{AccessToken: pair.AccessToken, User: user}, nil
}

func (r *Resolver) throttleLogin(p graphql.ResolveParams, ip, email string) error {
	if !r.limiter.Enabled() {
		return nil
	}
	for _, key := range []string{"login:ip:" + ip, "login:email:" + email} {
		decision, err := r.limiter.Allow(p.Context, key)
		if err != nil {
			r.log.WithContext(p.Context).Warn("login rate limiter unavailable", zap.Error(err))
			return nil
		}
		if !decision.Allowed {
			return fmt.Errorf("%w, retry in %s", errRateLimited, decision.RetryAfter.Round(time.Second))
		}
	}
	return nil
}

func (r *Resolver) logout(p graphql.ResolveParams) (interface{}, error) {
	requestFrom(p.Context).Session.ClearRefreshToken()
	return true, nil
}

func (r *Resolver) changePassword(p graphql.ResolveParams) (interface{}, error) {
	claims := claimsFrom(p)
	user, err := r.users.ChangePassword(p.Context, claims.UserID, argString(p.Args, "oldPassword"), argString(p.Args, "newPassword"))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	pair, err := r.issuer.Issue(user)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	requestFrom(p.Context).Session.SetRefreshToken(pair.RefreshToken, pair.RefreshExpiresAt)
	return loginResult{AccessToken: pair.AccessToken, User: user}, nil
}

func (r *Resolver) revokeSessions(p graphql.ResolveParams) (interface{}, error) {
	claims := claimsFrom(p)
	if _, err := r.users.RevokeSessions(p.Context, claims.UserID, claims.UserID); err != nil {
		return nil, r.clientError(p.Context, err)
	}
	requestFrom(p.Context).Session.ClearRefreshToken()
	return true, nil
}

func (r *Resolver) revokeUserSessions(p graphql.ResolveParams) (interface{}, error) {
	claims := claimsFrom(p)
	if _, err := r.users.RevokeSessions(p.Context, claims.UserID, argInt(p.Args, "userId")); err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return true, nil
}

func (r *Resolver) setClerk(p graphql.ResolveParams) (interface{}, error) {
	user, err := r.users.SetClerk(p.Context, argInt(p.Args, "userId"), argBool(p.Args, "clerk"))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return user, nil
}

func (r *Resolver) listUsers(p graphql.ResolveParams) (interface{}, error) {
	users, err := r.users.List(p.Context)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return users, nil
}

// Countries and addresses

func (r *Resolver) listCountries(p graphql.ResolveParams) (interface{}, error) {
	countries, err := r.addresses.ListCountries(p.Context)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return countries, nil
}

func (r *Resolver) createCountry(p graphql.ResolveParams) (interface{}, error) {
	country, err := r.addresses.CreateCountry(p.Context, argString(p.Args, "code"), argString(p.Args, "name"))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return country, nil
}

func (r *Resolver) getAddress(p graphql.ResolveParams) (interface{}, error) {
	address, err := r.addresses.GetAddress(p.Context, argInt(p.Args, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, r.clientError(p.Context, err)
	}
	return address, nil
}

func (r *Resolver) createAddress(p graphql.ResolveParams) (interface{}, error) {
	in := argObject(p.Args, "input")
	address, err := r.addresses.CreateAddress(p.Context, types.Address{
		Street:     argString(in, "street"),
		City:       argString(in, "city"),
		PostalCode: argString(in, "postalCode"),
		CountryID:  argInt(in, "countryId"),
	})
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return address, nil
}

func (r *Resolver) addressCountry(p graphql.ResolveParams) (interface{}, error) {
	country, err := r.addresses.GetCountry(p.Context, p.Source.(types.Address).CountryID)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return country, nil
}

func (r *Resolver) residencyAddress(p graphql.ResolveParams) (interface{}, error) {
	address, err := r.addresses.GetAddress(p.Context, p.Source.(types.Residency).AddressID)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return address, nil
}

// Persons and residencies

func (r *Resolver) listPersons(p graphql.ResolveParams) (interface{}, error) {
	offset, limit := page(p.Args)
	persons, total, err := r.persons.List(p.Context, types.PersonFilter{Search: argString(p.Args, "search")}, offset, limit)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return personPage{Items: persons, Total: total}, nil
}

func (r *Resolver) getPerson(p graphql.ResolveParams) (interface{}, error) {
	person, err := r.persons.Get(p.Context, argInt(p.Args, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, r.clientError(p.Context, err)
	}
	return person, nil
}

func personFromInput(in map[string]interface{}) types.Person {
	return types.Person{
		FirstName:    argString(in, "firstName"),
		LastName:     argString(in, "lastName"),
		Organization: argString(in, "organization"),
		Email:        argString(in, "email"),
		Phone:        argString(in, "phone"),
		Notes:        argString(in, "notes"),
	}
}

func (r *Resolver) createPerson(p graphql.ResolveParams) (interface{}, error) {
	person, err := r.persons.Create(p.Context, personFromInput(argObject(p.Args, "input")))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return person, nil
}

func (r *Resolver) updatePerson(p graphql.ResolveParams) (interface{}, error) {
	person := personFromInput(argObject(p.Args, "input"))
	person.ID = argInt(p.Args, "id")
	person, err := r.persons.Update(p.Context, person)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return person, nil
}

func (r *Resolver) deletePerson(p graphql.ResolveParams) (interface{}, error) {
	if err := r.persons.Delete(p.Context, argInt(p.Args, "id")); err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return true, nil
}

func (r *Resolver) personResidencies(p graphql.ResolveParams) (interface{}, error) {
	residencies, err := r.residencies.History(p.Context, p.Source.(types.Person).ID)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	if residencies == nil {
		residencies = []types.Residency{}
	}
	return residencies, nil
}

func (r *Resolver) personAddress(p graphql.ResolveParams) (interface{}, error) {
	return r.resolveAddress(p, p.Source.(types.Person).ID, argDate(p.Args, "at"))
}

func (r *Resolver) addressAt(p graphql.ResolveParams) (interface{}, error) {
	return r.resolveAddress(p, argInt(p.Args, "personId"), argDate(p.Args, "at"))
}

func (r *Resolver) resolveAddress(p graphql.ResolveParams, personID int, at *time.Time) (interface{}, error) {
	resolved, ok, err := r.residencies.AddressAt(p.Context, personID, at)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	if !ok {
		return nil, nil
	}
	return resolved, nil
}

func (r *Resolver) movePerson(p graphql.ResolveParams) (interface{}, error) {
	since, err := requireDate(p.Args, "since")
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	residency, err := r.residencies.Move(p.Context, claimsFrom(p).UserID, argInt(p.Args, "personId"), argInt(p.Args, "addressId"), since)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return residency, nil
}

func (r *Resolver) addResidencyHistory(p graphql.ResolveParams) (interface{}, error) {
	from, err := requireDate(p.Args, "from")
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	to, err := requireDate(p.Args, "to")
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	residency, err := r.residencies.AddHistory(p.Context, argInt(p.Args, "personId"), argInt(p.Args, "addressId"), from, to)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return residency, nil
}

// Documents

func (r *Resolver) listDocuments(p graphql.ResolveParams) (interface{}, error) {
	in := argObject(p.Args, "filter")
	filter := types.DocumentFilter{
		SenderID:    argInt(in, "senderId"),
		RecipientID: argInt(in, "recipientId"),
		Kind:        types.DocumentKind(argString(in, "kind")),
		From:        argDate(in, "from"),
		To:          argDate(in, "to"),
	}
	offset, limit := page(p.Args)
	documents, total, err := r.documents.List(p.Context, filter, offset, limit)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return documentPage{Items: documents, Total: total}, nil
}

func (r *Resolver) getDocument(p graphql.ResolveParams) (interface{}, error) {
	document, err := r.documents.Get(p.Context, argInt(p.Args, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, r.clientError(p.Context, err)
	}
	return document, nil
}

func documentFromInput(in map[string]interface{}) (types.Document, error) {
	date, err := requireDate(in, "documentDate")
	if err != nil {
		return types.Document{}, err
	}
	return types.Document{
		ReferenceNumber: argString(in, "referenceNumber"),
		Title:           argString(in, "title"),
		Kind:            types.DocumentKind(argString(in, "kind")),
		SenderID:        argIntPtr(in, "senderId"),
		RecipientID:     argIntPtr(in, "recipientId"),
		DocumentDate:    date,
		ReceivedAt:      argDate(in, "receivedAt"),
		Division:        argString(in, "division"),
		Notes:           argString(in, "notes"),
	}, nil
}

func (r *Resolver) createDocument(p graphql.ResolveParams) (interface{}, error) {
	document, err := documentFromInput(argObject(p.Args, "input"))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	document, err = r.documents.Create(p.Context, claimsFrom(p).UserID, document)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return document, nil
}

func (r *Resolver) updateDocument(p graphql.ResolveParams) (interface{}, error) {
	document, err := documentFromInput(argObject(p.Args, "input"))
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	document.ID = argInt(p.Args, "id")
	document, err = r.documents.Update(p.Context, document)
	if err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return document, nil
}

func (r *Resolver) deleteDocument(p graphql.ResolveParams) (interface{}, error) {
	if err := r.documents.Delete(p.Context, claimsFrom(p).UserID, argInt(p.Args, "id")); err != nil {
		return nil, r.clientError(p.Context, err)
	}
	return true, nil
}

func (r *Resolver) documentPerson(id func(types.Document) *int) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		personID := id(p.Source.(types.Document))
		if personID == nil {
			return nil, nil
		}
		person, err := r.persons.Get(p.Context, *personID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, r.clientError(p.Context, err)
		}
		return person, nil
	}
}

// documentAddress resolves the party's residency at the document date.
func (r *Resolver) documentAddress(id func(types.Document) *int) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		document := p.Source.(types.Document)
		personID := id(document)
		if personID == nil {
			return nil, nil
		}
		at := document.DocumentDate
		return r.resolveAddress(p, *personID, &at)
	}
}
