package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/docregistry/apiserver/types"
)

// NewSchema builds the registry schema with r's resolvers.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	countryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Country",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"code": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	addressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Address",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"street":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"city":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"postalCode": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"countryId":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"country": &graphql.Field{
				Type:    countryType,
				Resolve: r.addressCountry,
			},
		},
	})

	residencyType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Residency",
		Description: "A person living at an address from startDate to endDate, both inclusive. An open residency has no endDate.",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"personId":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"addressId": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"startDate": &graphql.Field{Type: graphql.NewNonNull(Date)},
			"endDate":   &graphql.Field{Type: Date},
			"current": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(types.Residency).Current(), nil
				},
			},
			"address": &graphql.Field{
				Type:    addressType,
				Resolve: r.residencyAddress,
			},
		},
	})

	resolvedAddressType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "ResolvedAddress",
		Description: "The address a person lived at on a given date.",
		Fields: graphql.Fields{
			"residency": &graphql.Field{Type: graphql.NewNonNull(residencyType)},
			"address":   &graphql.Field{Type: graphql.NewNonNull(addressType)},
			"country":   &graphql.Field{Type: graphql.NewNonNull(countryType)},
		},
	})

	personType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Person",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"firstName":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"lastName":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"organization": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"phone":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"notes":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt":    &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":    &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"residencies": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(residencyType))),
				Resolve: r.personResidencies,
			},
			"address": &graphql.Field{
				Type:        resolvedAddressType,
				Description: "Address valid at the given date, or the current one when at is omitted.",
				Args: graphql.FieldConfigArgument{
					"at": &graphql.ArgumentConfig{Type: Date},
				},
				Resolve: r.personAddress,
			},
		},
	})

	documentKindType := graphql.NewEnum(graphql.EnumConfig{
		Name: "DocumentKind",
		Values: graphql.EnumValueConfigMap{
			"INCOMING": &graphql.EnumValueConfig{Value: string(types.DocumentIncoming)},
			"OUTGOING": &graphql.EnumValueConfig{Value: string(types.DocumentOutgoing)},
			"INTERNAL": &graphql.EnumValueConfig{Value: string(types.DocumentInternal)},
		},
	})

	documentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Document",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"referenceNumber": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"title":           &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"kind": &graphql.Field{
				Type: graphql.NewNonNull(documentKindType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(types.Document).Kind), nil
				},
			},
			"senderId": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return intOrNil(p.Source.(types.Document).SenderID), nil
				},
			},
			"recipientId": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return intOrNil(p.Source.(types.Document).RecipientID), nil
				},
			},
			"sender": &graphql.Field{
				Type:    personType,
				Resolve: r.documentPerson(func(d types.Document) *int { return d.SenderID }),
			},
			"recipient": &graphql.Field{
				Type:    personType,
				Resolve: r.documentPerson(func(d types.Document) *int { return d.RecipientID }),
			},
			"senderAddress": &graphql.Field{
				Type:        resolvedAddressType,
				Description: "Sender's address valid at documentDate.",
				Resolve:     r.documentAddress(func(d types.Document) *int { return d.SenderID }),
			},
			"recipientAddress": &graphql.Field{
				Type:        resolvedAddressType,
				Description: "Recipient's address valid at documentDate.",
				Resolve:     r.documentAddress(func(d types.Document) *int { return d.RecipientID }),
			},
			"documentDate": &graphql.Field{Type: graphql.NewNonNull(Date)},
			"receivedAt":   &graphql.Field{Type: Date},
			"division":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"notes":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"hasAttachment": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(types.Document).AttachmentKey != "", nil
				},
			},
			"createdBy": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"username":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"displayName": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"division":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"clerk":       &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	meType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MeResult",
		Fields: graphql.Fields{
			"status": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":   &graphql.Field{Type: userType},
		},
	})

	loginType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LoginResult",
		Fields: graphql.Fields{
			"accessToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":        &graphql.Field{Type: graphql.NewNonNull(userType)},
		},
	})

	personPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PersonPage",
		Fields: graphql.Fields{
			"items": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(personType)))},
			"total": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	documentPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DocumentPage",
		Fields: graphql.Fields{
			"items": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(documentType)))},
			"total": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	registerInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "RegisterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"username":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"displayName": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"division":    &graphql.InputObjectFieldConfig{Type: graphql.String},
			"password":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	addressInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AddressInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"street":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"city":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"postalCode": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"countryId":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	personInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PersonInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"firstName":    &graphql.InputObjectFieldConfig{Type: graphql.String},
			"lastName":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"organization": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"phone":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"notes":        &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	documentInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "DocumentInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"referenceNumber": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"title":           &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"kind":            &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(documentKindType)},
			"senderId":        &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"recipientId":     &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"documentDate":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(Date)},
			"receivedAt":      &graphql.InputObjectFieldConfig{Type: Date},
			"division":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"notes":           &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	documentFilter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "DocumentFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			"senderId":    &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"recipientId": &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"kind":        &graphql.InputObjectFieldConfig{Type: documentKindType},
			"from":        &graphql.InputObjectFieldConfig{Type: Date},
			"to":          &graphql.InputObjectFieldConfig{Type: Date},
		},
	})

	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
	}
	pageArgs := func(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		extra["page"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1}
		extra["limit"] = &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10}
		return extra
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me": &graphql.Field{
				Type:        graphql.NewNonNull(meType),
				Description: "The caller's identity. Never fails for a missing or invalid token.",
				Resolve:     r.me,
			},
			"users": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
				Resolve: r.clerk(r.listUsers),
			},
			"countries": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(countryType))),
				Resolve: r.authenticated(r.listCountries),
			},
			"address": &graphql.Field{
				Type:    addressType,
				Args:    idArg,
				Resolve: r.authenticated(r.getAddress),
			},
			"persons": &graphql.Field{
				Type: graphql.NewNonNull(personPageType),
				Args: pageArgs(graphql.FieldConfigArgument{
					"search": &graphql.ArgumentConfig{Type: graphql.String},
				}),
				Resolve: r.authenticated(r.listPersons),
			},
			"person": &graphql.Field{
				Type:    personType,
				Args:    idArg,
				Resolve: r.authenticated(r.getPerson),
			},
			"addressAt": &graphql.Field{
				Type:        resolvedAddressType,
				Description: "Address of a person valid at the given date, or the current one when at is omitted.",
				Args: graphql.FieldConfigArgument{
					"personId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"at":       &graphql.ArgumentConfig{Type: Date},
				},
				Resolve: r.authenticated(r.addressAt),
			},
			"documents": &graphql.Field{
				Type: graphql.NewNonNull(documentPageType),
				Args: pageArgs(graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: documentFilter},
				}),
				Resolve: r.authenticated(r.listDocuments),
			},
			"document": &graphql.Field{
				Type:    documentType,
				Args:    idArg,
				Resolve: r.authenticated(r.getDocument),
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type: graphql.NewNonNull(userType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(registerInput)},
				},
				Resolve: r.register,
			},
			"login": &graphql.Field{
				Type: graphql.NewNonNull(loginType),
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.login,
			},
			"logout": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Resolve: r.logout,
			},
			"changePassword": &graphql.Field{
				Type:        graphql.NewNonNull(loginType),
				Description: "Changes the password, revokes every refresh token and returns a fresh session.",
				Args: graphql.FieldConfigArgument{
					"oldPassword": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"newPassword": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.authenticated(r.changePassword),
			},
			"revokeSessions": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Resolve: r.authenticated(r.revokeSessions),
			},
			"revokeUserSessions": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: r.clerk(r.revokeUserSessions),
			},
			"setClerk": &graphql.Field{
				Type: graphql.NewNonNull(userType),
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"clerk":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: r.clerk(r.setClerk),
			},
			"createCountry": &graphql.Field{
				Type: graphql.NewNonNull(countryType),
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.clerk(r.createCountry),
			},
			"createAddress": &graphql.Field{
				Type: graphql.NewNonNull(addressType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addressInput)},
				},
				Resolve: r.clerk(r.createAddress),
			},
			"createPerson": &graphql.Field{
				Type: graphql.NewNonNull(personType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(personInput)},
				},
				Resolve: r.clerk(r.createPerson),
			},
			"updatePerson": &graphql.Field{
				Type: graphql.NewNonNull(personType),
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(personInput)},
				},
				Resolve: r.clerk(r.updatePerson),
			},
			"deletePerson": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.clerk(r.deletePerson),
			},
			"movePerson": &graphql.Field{
				Type:        graphql.NewNonNull(residencyType),
				Description: "Closes the current residency the day before since and opens a new one at addressId.",
				Args: graphql.FieldConfigArgument{
					"personId":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"addressId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"since":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(Date)},
				},
				Resolve: r.clerk(r.movePerson),
			},
			"addResidencyHistory": &graphql.Field{
				Type: graphql.NewNonNull(residencyType),
				Args: graphql.FieldConfigArgument{
					"personId":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"addressId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"from":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(Date)},
					"to":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(Date)},
				},
				Resolve: r.clerk(r.addResidencyHistory),
			},
			"createDocument": &graphql.Field{
				Type: graphql.NewNonNull(documentType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(documentInput)},
				},
				Resolve: r.clerk(r.createDocument),
			},
			"updateDocument": &graphql.Field{
				Type: graphql.NewNonNull(documentType),
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(documentInput)},
				},
				Resolve: r.clerk(r.updateDocument),
			},
			"deleteDocument": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.clerk(r.deleteDocument),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
